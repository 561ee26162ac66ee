package service

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"time"

	"smartfarm-backend/internal/domain"
	"smartfarm-backend/internal/policy"
	"smartfarm-backend/internal/repository"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ReportService 农场运营报表导出（xlsx）
type ReportService struct {
	farms      repository.FarmsRepository
	users      repository.UsersRepository
	tasks      repository.TasksRepository
	attendance repository.AttendanceRepository
	resolver   *ActorResolver
	logger     *zap.Logger
}

// NewReportService 创建报表服务
func NewReportService(
	farms repository.FarmsRepository,
	users repository.UsersRepository,
	tasks repository.TasksRepository,
	attendance repository.AttendanceRepository,
	resolver *ActorResolver,
	logger *zap.Logger,
) *ReportService {
	return &ReportService{
		farms:      farms,
		users:      users,
		tasks:      tasks,
		attendance: attendance,
		resolver:   resolver,
		logger:     logger,
	}
}

// taskSheetHeader 任务页表头
var taskSheetHeader = []string{
	"Title", "Status", "Priority", "Assigned To", "Created By",
	"Due Date", "Completed At", "Estimated Hours", "Actual Hours",
}

// attendanceSheetHeader 考勤页表头
var attendanceSheetHeader = []string{
	"Worker", "Check In", "Check Out", "Status", "Total Hours", "Location",
}

// workforceSheetHeader 人员页表头
var workforceSheetHeader = []string{
	"Name", "Username", "Email", "Role", "Active",
}

// FarmReport 生成单个农场的运营报表（管理员或该农场 owner）
// 返回 xlsx 字节流与建议的下载文件名
func (s *ReportService) FarmReport(ctx context.Context, actorID, farmID string) ([]byte, string, error) {
	farm, err := s.farms.GetFarm(ctx, farmID)
	if err != nil {
		return nil, "", err
	}
	_, actor, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return nil, "", err
	}
	if !policy.CanManageFarm(actor, farm) {
		return nil, "", domain.ErrPermissionDenied
	}

	tasks, err := s.tasks.ListTasks(ctx, repository.TaskFilters{FarmIDs: []string{farmID}})
	if err != nil {
		return nil, "", err
	}
	records, err := s.attendance.ListAttendance(ctx, repository.AttendanceFilters{FarmIDs: []string{farmID}})
	if err != nil {
		return nil, "", err
	}
	staff, err := s.users.ListUsers(ctx, repository.UserFilters{
		FarmIDs: []string{farmID},
		Roles:   []domain.Role{domain.RoleSupervisor, domain.RoleWorker},
	})
	if err != nil {
		return nil, "", err
	}

	// 人名查找表（任务/考勤页按 ID 换显示名）
	names := map[string]string{}
	for _, u := range staff {
		names[u.UserID] = u.FullName()
	}
	lookupName := func(userID string) string {
		if name, ok := names[userID]; ok {
			return name
		}
		u, err := s.users.GetUser(ctx, userID)
		if err != nil {
			return userID
		}
		names[userID] = u.FullName()
		return u.FullName()
	}

	data, err := buildFarmReport(farm, tasks, records, staff, lookupName)
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("Farm report generated",
		zap.String("farm_id", farmID),
		zap.String("requested_by", actorID),
		zap.Int("tasks", len(tasks)),
		zap.Int("attendance_records", len(records)),
	)
	filename := fmt.Sprintf("farm-report-%s-%s.xlsx", farm.Name, time.Now().Format("20060102"))
	return data, filename, nil
}

// buildFarmReport 拼装三页工作簿：Tasks / Attendance / Workforce
func buildFarmReport(
	farm *domain.Farm,
	tasks []*domain.Task,
	records []*domain.Attendance,
	staff []*domain.User,
	lookupName func(string) string,
) ([]byte, error) {
	f := excelize.NewFile()
	// WriteTo 之前不能 Close，出错路径手动收尾

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	taskRows := make([][]any, 0, len(tasks))
	for _, t := range tasks {
		taskRows = append(taskRows, []any{
			t.Title,
			string(t.Status),
			string(t.Priority),
			lookupName(t.AssignedToID),
			lookupName(t.CreatedByID),
			nullTimeCell(t.DueDate, "2006-01-02"),
			nullTimeCell(t.CompletedAt, "2006-01-02 15:04"),
			nullFloatCell(t.EstimatedHours),
			nullFloatCell(t.ActualHours),
		})
	}
	attendanceRows := make([][]any, 0, len(records))
	for _, rec := range records {
		checkOut := ""
		if rec.CheckOutTime.Valid {
			checkOut = rec.CheckOutTime.Time.Format("2006-01-02 15:04")
		}
		location := ""
		if rec.CheckInLocation.Valid {
			location = rec.CheckInLocation.String
		}
		attendanceRows = append(attendanceRows, []any{
			lookupName(rec.UserID),
			rec.CheckInTime.Format("2006-01-02 15:04"),
			checkOut,
			string(rec.Status),
			nullFloatCell(rec.TotalHours),
			location,
		})
	}
	staffRows := make([][]any, 0, len(staff))
	for _, u := range staff {
		active := "No"
		if u.IsActive {
			active = "Yes"
		}
		staffRows = append(staffRows, []any{
			u.FullName(), u.Username, u.Email, string(u.Role), active,
		})
	}

	sheets := []struct {
		name    string
		headers []string
		widths  []float64
		rows    [][]any
	}{
		{"Tasks", taskSheetHeader, []float64{30, 16, 12, 22, 22, 14, 18, 16, 14}, taskRows},
		{"Attendance", attendanceSheetHeader, []float64{22, 18, 18, 14, 12, 24}, attendanceRows},
		{"Workforce", workforceSheetHeader, []float64{22, 24, 28, 14, 10}, staffRows},
	}

	for i, sheet := range sheets {
		index, err := f.NewSheet(sheet.name)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create sheet %s: %w", sheet.name, err)
		}
		if i == 0 {
			f.DeleteSheet("Sheet1")
			f.SetActiveSheet(index)
		}
		if err := writeSheet(f, sheet.name, sheet.headers, sheet.widths, sheet.rows, headerStyle); err != nil {
			f.Close()
			return nil, err
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// writeSheet 写一页：样式表头 + 列宽 + 数据 + 冻结首行
func writeSheet(f *excelize.File, sheetName string, headers []string, widths []float64, rows [][]any, headerStyle int) error {
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
	}

	for i := range headers {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("failed to convert column number: %w", err)
		}
		if i < len(widths) && widths[i] > 0 {
			if err := f.SetColWidth(sheetName, col, col, widths[i]); err != nil {
				return fmt.Errorf("failed to set column width: %w", err)
			}
		}
	}

	for rowIdx, row := range rows {
		for colIdx, value := range row {
			if value == nil || value == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		Split:       false,
		XSplit:      0,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze panes: %w", err)
	}
	return nil
}

// nullTimeCell NullTime 转单元格值（无值为空串）
func nullTimeCell(t sql.NullTime, layout string) any {
	if !t.Valid {
		return ""
	}
	return t.Time.Format(layout)
}

// nullFloatCell NullFloat64 转单元格值
func nullFloatCell(v sql.NullFloat64) any {
	if !v.Valid {
		return ""
	}
	return v.Float64
}
