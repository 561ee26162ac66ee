// +build integration

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"

	"smartfarm-backend/internal/domain"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

// getTestDBForAssignments 连接测试数据库（TEST_DB_DSN 未设置时跳过）
func getTestDBForAssignments(t *testing.T) *sql.DB {
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set, skipping integration test")
	}
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	require.NoError(t, db.Ping())
	return db
}

// createTestSupervisorForAssignments 创建测试主管
func createTestSupervisorForAssignments(t *testing.T, db *sql.DB, suffix string) string {
	var userID string
	err := db.QueryRow(`
		INSERT INTO users (username, email, password_hash, first_name, last_name, role)
		VALUES ($1, $2, $3, 'Test', 'Supervisor', 'SUPERVISOR')
		RETURNING user_id::text
	`, "test_sup_"+suffix, "test_sup_"+suffix+"@example.com", []byte("x")).Scan(&userID)
	require.NoError(t, err)
	return userID
}

// createTestFarmForAssignments 创建测试农场
func createTestFarmForAssignments(t *testing.T, db *sql.DB, name string) string {
	var farmID string
	err := db.QueryRow(`
		INSERT INTO farms (name, location, size)
		VALUES ($1, 'Test Location', 10)
		RETURNING farm_id::text
	`, name).Scan(&farmID)
	require.NoError(t, err)
	return farmID
}

// cleanupTestDataForAssignments 清理测试数据
func cleanupTestDataForAssignments(t *testing.T, db *sql.DB, supervisorID string, farmIDs ...string) {
	_, err := db.Exec(`DELETE FROM supervisor_farm_assignments WHERE supervisor_id = $1`, supervisorID)
	require.NoError(t, err)
	_, err = db.Exec(`DELETE FROM users WHERE user_id = $1`, supervisorID)
	require.NoError(t, err)
	for _, id := range farmIDs {
		_, err = db.Exec(`DELETE FROM farms WHERE farm_id = $1`, id)
		require.NoError(t, err)
	}
}

func getAssignedFarm(t *testing.T, db *sql.DB, userID string) string {
	var assigned sql.NullString
	err := db.QueryRow(`SELECT assigned_farm_id::text FROM users WHERE user_id = $1`, userID).Scan(&assigned)
	require.NoError(t, err)
	return assigned.String
}

func TestAssignmentsRepository_AssignCapacityAndPrimary(t *testing.T) {
	db := getTestDBForAssignments(t)
	defer db.Close()
	ctx := context.Background()

	sup := createTestSupervisorForAssignments(t, db, "cap")
	f1 := createTestFarmForAssignments(t, db, "Test Farm Cap 1")
	f2 := createTestFarmForAssignments(t, db, "Test Farm Cap 2")
	f3 := createTestFarmForAssignments(t, db, "Test Farm Cap 3")
	defer cleanupTestDataForAssignments(t, db, sup, f1, f2, f3)

	repo := NewPostgresAssignmentsRepository(db)

	// 首条分配确立主农场
	require.NoError(t, repo.Assign(ctx, sup, f1))
	require.Equal(t, f1, getAssignedFarm(t, db, sup))

	// 第二条不改主农场
	require.NoError(t, repo.Assign(ctx, sup, f2))
	require.Equal(t, f1, getAssignedFarm(t, db, sup))

	// 重复分配
	require.ErrorIs(t, repo.Assign(ctx, sup, f1), domain.ErrAlreadyAssigned)

	// 超出容量
	require.ErrorIs(t, repo.Assign(ctx, sup, f3), domain.ErrCapacityExceeded)

	ids, err := repo.ListFarmIDsBySupervisor(ctx, sup)
	require.NoError(t, err)
	require.Equal(t, []string{f1, f2}, ids)
}

func TestAssignmentsRepository_RemovePromotesPrimary(t *testing.T) {
	db := getTestDBForAssignments(t)
	defer db.Close()
	ctx := context.Background()

	sup := createTestSupervisorForAssignments(t, db, "rm")
	f1 := createTestFarmForAssignments(t, db, "Test Farm Rm 1")
	f2 := createTestFarmForAssignments(t, db, "Test Farm Rm 2")
	defer cleanupTestDataForAssignments(t, db, sup, f1, f2)

	repo := NewPostgresAssignmentsRepository(db)
	require.NoError(t, repo.Assign(ctx, sup, f1))
	require.NoError(t, repo.Assign(ctx, sup, f2))

	// 未分配的农场
	require.ErrorIs(t, repo.Remove(ctx, sup, "00000000-0000-0000-0000-000000000000"), domain.ErrNotAssigned)

	// 解除主农场 → 顺位提升 f2
	require.NoError(t, repo.Remove(ctx, sup, f1))
	require.Equal(t, f2, getAssignedFarm(t, db, sup))

	// 解除最后一条 → 清空
	require.NoError(t, repo.Remove(ctx, sup, f2))
	require.Equal(t, "", getAssignedFarm(t, db, sup))
}

func TestAssignmentsRepository_ReassignAtomic(t *testing.T) {
	db := getTestDBForAssignments(t)
	defer db.Close()
	ctx := context.Background()

	sup := createTestSupervisorForAssignments(t, db, "re")
	f1 := createTestFarmForAssignments(t, db, "Test Farm Re 1")
	f2 := createTestFarmForAssignments(t, db, "Test Farm Re 2")
	f3 := createTestFarmForAssignments(t, db, "Test Farm Re 3")
	defer cleanupTestDataForAssignments(t, db, sup, f1, f2, f3)

	repo := NewPostgresAssignmentsRepository(db)
	require.NoError(t, repo.Assign(ctx, sup, f1))
	require.NoError(t, repo.Assign(ctx, sup, f2))

	// from 未分配
	require.ErrorIs(t, repo.Reassign(ctx, sup, f3, f1), domain.ErrNotAssigned)
	// to 已分配
	require.ErrorIs(t, repo.Reassign(ctx, sup, f1, f2), domain.ErrAlreadyAssigned)

	// 主农场跟随切换
	require.NoError(t, repo.Reassign(ctx, sup, f1, f3))
	require.Equal(t, f3, getAssignedFarm(t, db, sup))

	ids, err := repo.ListFarmIDsBySupervisor(ctx, sup)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	require.Contains(t, ids, f2)
	require.Contains(t, ids, f3)
}

func TestAssignmentsRepository_ConcurrentAssignHonorsCapacity(t *testing.T) {
	db := getTestDBForAssignments(t)
	defer db.Close()
	ctx := context.Background()

	sup := createTestSupervisorForAssignments(t, db, "conc")
	farms := make([]string, 4)
	for i := range farms {
		farms[i] = createTestFarmForAssignments(t, db, fmt.Sprintf("Test Farm Conc %d", i))
	}
	defer cleanupTestDataForAssignments(t, db, sup, farms...)

	repo := NewPostgresAssignmentsRepository(db)

	// 并发分配 4 个农场，最终成功的不能超过 2 个
	errCh := make(chan error, len(farms))
	for _, farmID := range farms {
		go func(id string) {
			errCh <- repo.Assign(ctx, sup, id)
		}(farmID)
	}
	succeeded := 0
	for range farms {
		if err := <-errCh; err == nil {
			succeeded++
		}
	}
	require.Equal(t, domain.MaxSupervisedFarms, succeeded)

	ids, err := repo.ListFarmIDsBySupervisor(ctx, sup)
	require.NoError(t, err)
	require.Len(t, ids, domain.MaxSupervisedFarms)
}
