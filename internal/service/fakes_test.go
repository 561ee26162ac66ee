package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"smartfarm-backend/internal/domain"
	"smartfarm-backend/internal/repository"
	"smartfarm-backend/internal/store"
)

// 内存版 repository 实现，仅用于单元测试。
// 分配相关的容量与重复检查镜像 Postgres 实现的事务语义。

type fakeUsersRepo struct {
	mu    sync.Mutex
	seq   int
	users map[string]*domain.User
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{users: map[string]*domain.User{}}
}

func (f *fakeUsersRepo) put(u *domain.User) *domain.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.UserID == "" {
		f.seq++
		u.UserID = fmt.Sprintf("user-%d", f.seq)
	}
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	f.users[u.UserID] = u
	return u
}

func (f *fakeUsersRepo) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUsersRepo) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeUsersRepo) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeUsersRepo) ListUsers(ctx context.Context, filters repository.UserFilters) ([]*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*domain.User{}
	for _, u := range f.users {
		if filters.Role != "" && u.Role != filters.Role {
			continue
		}
		if len(filters.Roles) > 0 {
			match := false
			for _, r := range filters.Roles {
				if u.Role == r {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		if len(filters.FarmIDs) > 0 {
			match := false
			for _, id := range filters.FarmIDs {
				if u.AssignedFarmID.Valid && u.AssignedFarmID.String == id {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		if filters.ActiveOnly && !u.IsActive {
			continue
		}
		copied := *u
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeUsersRepo) CreateUser(ctx context.Context, user *domain.User) (string, error) {
	for _, existing := range f.users {
		if existing.Username == user.Username || strings.EqualFold(existing.Email, user.Email) {
			return "", domain.ErrDuplicate
		}
	}
	copied := *user
	return f.put(&copied).UserID, nil
}

func (f *fakeUsersRepo) UpdateUser(ctx context.Context, userID string, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	if user.FirstName != "" {
		existing.FirstName = user.FirstName
	}
	if user.LastName != "" {
		existing.LastName = user.LastName
	}
	if user.Email != "" {
		existing.Email = user.Email
	}
	if user.Phone.Valid {
		existing.Phone = user.Phone
	}
	existing.UpdatedAt = time.Now()
	return nil
}

func (f *fakeUsersRepo) UpdatePassword(ctx context.Context, userID string, passwordHash []byte, mustChange bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.MustChangePassword = mustChange
	return nil
}

func (f *fakeUsersRepo) SetActive(ctx context.Context, userID string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.IsActive = active
	return nil
}

func (f *fakeUsersRepo) SetAssignedFarm(ctx context.Context, userID string, farmID *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	if farmID == nil {
		u.AssignedFarmID.Valid = false
		u.AssignedFarmID.String = ""
	} else {
		u.AssignedFarmID.Valid = true
		u.AssignedFarmID.String = *farmID
	}
	return nil
}

func (f *fakeUsersRepo) ClearAssignedFarmByFarm(ctx context.Context, farmID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.AssignedFarmID.Valid && u.AssignedFarmID.String == farmID {
			u.AssignedFarmID.Valid = false
			u.AssignedFarmID.String = ""
		}
	}
	return nil
}

func (f *fakeUsersRepo) CountByRole(ctx context.Context, role domain.Role) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, u := range f.users {
		if u.Role == role && u.IsActive {
			n++
		}
	}
	return n, nil
}

func (f *fakeUsersRepo) CountByFarmAndRole(ctx context.Context, farmID string, role domain.Role) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, u := range f.users {
		if u.Role == role && u.IsActive && u.AssignedFarmID.Valid && u.AssignedFarmID.String == farmID {
			n++
		}
	}
	return n, nil
}

var _ repository.UsersRepository = (*fakeUsersRepo)(nil)

type fakeFarmsRepo struct {
	mu    sync.Mutex
	seq   int
	farms map[string]*domain.Farm
}

func newFakeFarmsRepo() *fakeFarmsRepo {
	return &fakeFarmsRepo{farms: map[string]*domain.Farm{}}
}

func (f *fakeFarmsRepo) put(farm *domain.Farm) *domain.Farm {
	f.mu.Lock()
	defer f.mu.Unlock()
	if farm.FarmID == "" {
		f.seq++
		farm.FarmID = fmt.Sprintf("farm-%d", f.seq)
	}
	farm.CreatedAt = time.Now()
	farm.UpdatedAt = farm.CreatedAt
	f.farms[farm.FarmID] = farm
	return farm
}

func (f *fakeFarmsRepo) GetFarm(ctx context.Context, farmID string) (*domain.Farm, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	farm, ok := f.farms[farmID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *farm
	return &copied, nil
}

func (f *fakeFarmsRepo) ListFarms(ctx context.Context) ([]*domain.Farm, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*domain.Farm{}
	for _, farm := range f.farms {
		copied := *farm
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeFarmsRepo) ListFarmsByOwner(ctx context.Context, ownerID string) ([]*domain.Farm, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*domain.Farm{}
	for _, farm := range f.farms {
		if farm.OwnerID.Valid && farm.OwnerID.String == ownerID {
			copied := *farm
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeFarmsRepo) ListFarmsByIDs(ctx context.Context, farmIDs []string) ([]*domain.Farm, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*domain.Farm{}
	for _, id := range farmIDs {
		if farm, ok := f.farms[id]; ok {
			copied := *farm
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeFarmsRepo) CreateFarm(ctx context.Context, farm *domain.Farm) (string, error) {
	copied := *farm
	return f.put(&copied).FarmID, nil
}

func (f *fakeFarmsRepo) UpdateFarm(ctx context.Context, farmID string, farm *domain.Farm) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.farms[farmID]
	if !ok {
		return domain.ErrNotFound
	}
	if farm.Name != "" {
		existing.Name = farm.Name
	}
	if farm.Location != "" {
		existing.Location = farm.Location
	}
	if farm.Size > 0 {
		existing.Size = farm.Size
	}
	if farm.SizeUnit != "" {
		existing.SizeUnit = farm.SizeUnit
	}
	if farm.Description.Valid {
		existing.Description = farm.Description
	}
	existing.UpdatedAt = time.Now()
	return nil
}

func (f *fakeFarmsRepo) DeleteFarm(ctx context.Context, farmID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.farms[farmID]; !ok {
		return domain.ErrNotFound
	}
	delete(f.farms, farmID)
	return nil
}

func (f *fakeFarmsRepo) CountFarms(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.farms), nil
}

var _ repository.FarmsRepository = (*fakeFarmsRepo)(nil)

// fakeAssignmentsRepo 镜像 Postgres 实现的语义：
// 容量 ≤2、重复分配拒绝、首条分配确立主农场、解除/换岗跟随切换
type fakeAssignmentsRepo struct {
	mu       sync.Mutex
	users    *fakeUsersRepo
	byFarmID map[string][]string // farmID -> supervisorIDs
	bySupID  map[string][]string // supervisorID -> farmIDs（分配顺序）
}

func newFakeAssignmentsRepo(users *fakeUsersRepo) *fakeAssignmentsRepo {
	return &fakeAssignmentsRepo{
		users:    users,
		byFarmID: map[string][]string{},
		bySupID:  map[string][]string{},
	}
}

func (f *fakeAssignmentsRepo) ListFarmIDsBySupervisor(ctx context.Context, supervisorID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.bySupID[supervisorID]...), nil
}

func (f *fakeAssignmentsRepo) ListSupervisorIDsByFarm(ctx context.Context, farmID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.byFarmID[farmID]...), nil
}

func (f *fakeAssignmentsRepo) setPrimary(supervisorID string, farmID *string) {
	_ = f.users.SetAssignedFarm(context.Background(), supervisorID, farmID)
}

func (f *fakeAssignmentsRepo) Assign(ctx context.Context, supervisorID, farmID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	assigned := f.bySupID[supervisorID]
	if len(assigned) >= domain.MaxSupervisedFarms {
		return domain.ErrCapacityExceeded
	}
	for _, id := range assigned {
		if id == farmID {
			return domain.ErrAlreadyAssigned
		}
	}
	f.bySupID[supervisorID] = append(assigned, farmID)
	f.byFarmID[farmID] = append(f.byFarmID[farmID], supervisorID)
	if len(assigned) == 0 {
		f.setPrimary(supervisorID, &farmID)
	}
	return nil
}

func (f *fakeAssignmentsRepo) Remove(ctx context.Context, supervisorID, farmID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	assigned := f.bySupID[supervisorID]
	idx := -1
	for i, id := range assigned {
		if id == farmID {
			idx = i
		}
	}
	if idx < 0 {
		return domain.ErrNotAssigned
	}
	f.bySupID[supervisorID] = append(append([]string{}, assigned[:idx]...), assigned[idx+1:]...)
	sups := f.byFarmID[farmID]
	for i, id := range sups {
		if id == supervisorID {
			f.byFarmID[farmID] = append(append([]string{}, sups[:i]...), sups[i+1:]...)
			break
		}
	}

	u, err := f.users.GetUser(ctx, supervisorID)
	if err == nil && u.AssignedFarmID.Valid && u.AssignedFarmID.String == farmID {
		remaining := f.bySupID[supervisorID]
		if len(remaining) > 0 {
			f.setPrimary(supervisorID, &remaining[0])
		} else {
			f.setPrimary(supervisorID, nil)
		}
	}
	return nil
}

func (f *fakeAssignmentsRepo) Reassign(ctx context.Context, supervisorID, fromFarmID, toFarmID string) error {
	f.mu.Lock()
	assigned := f.bySupID[supervisorID]
	hasFrom := false
	for _, id := range assigned {
		if id == fromFarmID {
			hasFrom = true
		}
		if id == toFarmID {
			f.mu.Unlock()
			return domain.ErrAlreadyAssigned
		}
	}
	f.mu.Unlock()
	if !hasFrom {
		return domain.ErrNotAssigned
	}

	u, _ := f.users.GetUser(ctx, supervisorID)
	wasPrimary := u != nil && u.AssignedFarmID.Valid && u.AssignedFarmID.String == fromFarmID

	if err := f.Remove(ctx, supervisorID, fromFarmID); err != nil {
		return err
	}
	if err := f.Assign(ctx, supervisorID, toFarmID); err != nil {
		return err
	}
	if wasPrimary {
		f.setPrimary(supervisorID, &toFarmID)
	}
	return nil
}

var _ repository.AssignmentsRepository = (*fakeAssignmentsRepo)(nil)

type fakeTasksRepo struct {
	mu    sync.Mutex
	seq   int
	tasks map[string]*domain.Task
}

func newFakeTasksRepo() *fakeTasksRepo {
	return &fakeTasksRepo{tasks: map[string]*domain.Task{}}
}

func (f *fakeTasksRepo) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[taskID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (f *fakeTasksRepo) matches(t *domain.Task, filters repository.TaskFilters) bool {
	// 与 Postgres 实现一致：条件之间取交集
	if filters.CreatedByID != "" && t.CreatedByID != filters.CreatedByID {
		return false
	}
	if filters.AssignedToID != "" && t.AssignedToID != filters.AssignedToID {
		return false
	}
	if len(filters.FarmIDs) > 0 {
		onFarm := false
		for _, id := range filters.FarmIDs {
			if t.FarmID == id {
				onFarm = true
			}
		}
		if !onFarm {
			return false
		}
	}
	if filters.Status != "" && t.Status != filters.Status {
		return false
	}
	if filters.DueOn != nil {
		if !t.DueDate.Valid {
			return false
		}
		y1, m1, d1 := t.DueDate.Time.Date()
		y2, m2, d2 := filters.DueOn.Date()
		if y1 != y2 || m1 != m2 || d1 != d2 {
			return false
		}
	}
	return true
}

func (f *fakeTasksRepo) ListTasks(ctx context.Context, filters repository.TaskFilters) ([]*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*domain.Task{}
	for _, t := range f.tasks {
		if f.matches(t, filters) {
			copied := *t
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeTasksRepo) CreateTask(ctx context.Context, task *domain.Task) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	copied := *task
	copied.TaskID = fmt.Sprintf("task-%d", f.seq)
	copied.CreatedAt = time.Now()
	copied.UpdatedAt = copied.CreatedAt
	f.tasks[copied.TaskID] = &copied
	return copied.TaskID, nil
}

func (f *fakeTasksRepo) UpdateTask(ctx context.Context, taskID string, task *domain.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.tasks[taskID]
	if !ok {
		return domain.ErrNotFound
	}
	if task.Status != "" {
		existing.Status = task.Status
	}
	if task.StartedAt.Valid {
		existing.StartedAt = task.StartedAt
	}
	if task.CompletedAt.Valid {
		existing.CompletedAt = task.CompletedAt
	}
	if task.ActualHours.Valid {
		existing.ActualHours = task.ActualHours
	}
	if task.CompletionNotes.Valid {
		existing.CompletionNotes = task.CompletionNotes
	}
	if task.ReasonForDelay.Valid {
		existing.ReasonForDelay = task.ReasonForDelay
	}
	if task.EstimatedCompletionDate.Valid {
		existing.EstimatedCompletionDate = task.EstimatedCompletionDate
	}
	if task.PhotoURL.Valid {
		existing.PhotoURL = task.PhotoURL
	}
	existing.UpdatedAt = time.Now()
	return nil
}

func (f *fakeTasksRepo) DeleteTask(ctx context.Context, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tasks[taskID]; !ok {
		return domain.ErrNotFound
	}
	delete(f.tasks, taskID)
	return nil
}

func (f *fakeTasksRepo) CountByStatus(ctx context.Context, filters repository.TaskFilters) (map[domain.TaskStatus]int, error) {
	tasks, err := f.ListTasks(ctx, filters)
	if err != nil {
		return nil, err
	}
	counts := map[domain.TaskStatus]int{}
	for _, t := range tasks {
		counts[t.Status]++
	}
	return counts, nil
}

func (f *fakeTasksRepo) CountOverdue(ctx context.Context, filters repository.TaskFilters, now time.Time) (int, error) {
	tasks, err := f.ListTasks(ctx, filters)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, t := range tasks {
		if t.DueDate.Valid && t.DueDate.Time.Before(now) && t.Status != domain.TaskCompleted && t.Status != domain.TaskCancelled {
			n++
		}
	}
	return n, nil
}

var _ repository.TasksRepository = (*fakeTasksRepo)(nil)

type fakeKV struct {
	mu    sync.Mutex
	kv    map[string]string
	lists map[string][]string
}

func newFakeKV() *fakeKV {
	return &fakeKV{kv: map[string]string{}, lists: map[string][]string{}}
}

func (f *fakeKV) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.kv[key]
	if !ok {
		return "", store.ErrMiss
	}
	return v, nil
}

func (f *fakeKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kv[key] = value
	return nil
}

func (f *fakeKV) Del(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.kv, k)
		delete(f.lists, k)
	}
	return nil
}

func (f *fakeKV) PushList(ctx context.Context, key string, value string, maxLen int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := append([]string{value}, f.lists[key]...)
	if maxLen > 0 && int64(len(list)) > maxLen {
		list = list[:maxLen]
	}
	f.lists[key] = list
	return nil
}

func (f *fakeKV) RangeList(ctx context.Context, key string, start, stop int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.lists[key]
	if start < 0 {
		start = 0
	}
	if stop < 0 || stop >= int64(len(list)) {
		stop = int64(len(list)) - 1
	}
	if start > stop {
		return []string{}, nil
	}
	return append([]string{}, list[start:stop+1]...), nil
}

func (f *fakeKV) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	keys := []string{}
	for k := range f.kv {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	for k := range f.lists {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

var _ store.KV = (*fakeKV)(nil)
