package main

import (
	"fmt"
	"os"

	"smartfarm-backend/internal/config"
	"smartfarm-backend/internal/database"

	_ "github.com/lib/pq"
)

// 把 scripts/schema.sql 应用到目标数据库（幂等，可重复执行）
func main() {
	cfg := config.Load()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	sqlFile := "scripts/schema.sql"
	if len(os.Args) > 1 {
		sqlFile = os.Args[1]
	}
	sqlBytes, err := os.ReadFile(sqlFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read SQL file: %v\n", err)
		os.Exit(1)
	}

	if _, err := db.Exec(string(sqlBytes)); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to execute SQL: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("schema applied successfully")
}
