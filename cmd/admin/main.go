package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"phFolio/internal/auth"
	"phFolio/internal/config"
	"phFolio/internal/database"
	"phFolio/internal/storage"
)

const usage = `用法:
  admin create-account --username <name> [--slug <slug>] [数据库参数]
  admin unpublish --username <name>

unpublish 读取完整的环境变量配置（数据库与 MinIO）。`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	switch os.Args[1] {
	case "create-account":
		createAccount(os.Args[2:])
	case "unpublish":
		unpublish(os.Args[2:])
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
}

// createAccount 创建账号并打印一次性随机密码。
func createAccount(args []string) {
	fs := flag.NewFlagSet("create-account", flag.ExitOnError)
	var (
		username = fs.String("username", "", "账号用户名（必填）")
		slug     = fs.String("slug", "", "公开页面 slug（可选，默认为小写用户名）")
		dbHost   = fs.String("db-host", "", "数据库 Host（可选，默认读 DATABASE_HOST）")
		dbPort   = fs.Int("db-port", 0, "数据库 Port（可选，默认读 DATABASE_PORT）")
		dbName   = fs.String("db-name", "", "数据库名（可选，默认读 POSTGRES_DB）")
		dbUser   = fs.String("db-user", "", "数据库用户（可选，默认读 POSTGRES_USER）")
		dbPass   = fs.String("db-password", "", "数据库密码（可选，默认读 POSTGRES_PASSWORD）")
		sslMode  = fs.String("db-sslmode", "", "数据库 SSLMODE（可选，默认读 DATABASE_SSLMODE）")
	)
	_ = fs.Parse(args)

	u := strings.TrimSpace(*username)
	if u == "" {
		log.Fatal("missing required flag: --username")
	}
	s := strings.TrimSpace(*slug)
	if s == "" {
		s = strings.ToLower(u)
	}

	dbCfg, err := loadDatabaseConfig(*dbHost, *dbPort, *dbName, *dbUser, *dbPass, *sslMode)
	if err != nil {
		log.Fatalf("load database config: %v", err)
	}

	db, err := database.InitDatabase(dbCfg)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}

	var existing database.Account
	switch err := db.Where("username = ? OR slug = ?", u, s).First(&existing).Error; {
	case err == nil:
		log.Fatalf("account %q or slug %q already exists", u, s)
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		log.Fatalf("query account: %v", err)
	}

	password, err := generateRandomPassword(24)
	if err != nil {
		log.Fatalf("generate password: %v", err)
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	account := database.Account{
		Username:     u,
		Slug:         s,
		PasswordHash: hashed,
	}
	if err := db.Create(&account).Error; err != nil {
		log.Fatalf("create account: %v", err)
	}

	fmt.Printf("已创建账号：\n")
	fmt.Printf("用户名: %s\n", u)
	fmt.Printf("公开地址 slug: %s\n", s)
	fmt.Printf("初始密码: %s\n", password)
	fmt.Printf("提示：该密码仅显示一次。\n")
}

// unpublish 删除账号已发布的页面快照。数据库中的页面保持不变，下一次保存会重新发布。
func unpublish(args []string) {
	fs := flag.NewFlagSet("unpublish", flag.ExitOnError)
	username := fs.String("username", "", "账号用户名（必填）")
	_ = fs.Parse(args)

	u := strings.TrimSpace(*username)
	if u == "" {
		log.Fatal("missing required flag: --username")
	}

	cfg := config.MustLoad()
	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}

	var account database.Account
	if err := db.Where("username = ?", u).First(&account).Error; err != nil {
		log.Fatalf("query account %q: %v", u, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	removed, err := storageClient.DeletePrefix(ctx, storage.SnapshotPrefix(account.ID))
	if err != nil {
		log.Fatalf("delete snapshots: %v", err)
	}
	fmt.Printf("已删除 %d 个快照对象（账号 %s）\n", removed, u)
}

func loadDatabaseConfig(host string, port int, name, user, password, sslmode string) (config.DatabaseConfig, error) {
	if strings.TrimSpace(host) == "" {
		host = os.Getenv("DATABASE_HOST")
	}
	if port <= 0 {
		if env := strings.TrimSpace(os.Getenv("DATABASE_PORT")); env != "" {
			p, err := strconv.Atoi(env)
			if err != nil {
				return config.DatabaseConfig{}, fmt.Errorf("parse DATABASE_PORT: %w", err)
			}
			port = p
		}
	}
	if strings.TrimSpace(name) == "" {
		name = os.Getenv("POSTGRES_DB")
	}
	if strings.TrimSpace(name) == "" {
		name = os.Getenv("DB_NAME")
	}
	if strings.TrimSpace(user) == "" {
		user = os.Getenv("POSTGRES_USER")
	}
	if strings.TrimSpace(user) == "" {
		user = os.Getenv("DB_USER")
	}
	if strings.TrimSpace(password) == "" {
		password = os.Getenv("POSTGRES_PASSWORD")
	}
	if strings.TrimSpace(password) == "" {
		password = os.Getenv("DB_PASSWORD")
	}
	if strings.TrimSpace(sslmode) == "" {
		sslmode = os.Getenv("DATABASE_SSLMODE")
	}

	if strings.TrimSpace(host) == "" {
		host = "localhost"
	}
	if port <= 0 {
		port = 5432
	}
	if strings.TrimSpace(sslmode) == "" {
		sslmode = "disable"
	}
	if strings.TrimSpace(name) == "" {
		return config.DatabaseConfig{}, errors.New("database name is required (POSTGRES_DB)")
	}
	if strings.TrimSpace(user) == "" {
		return config.DatabaseConfig{}, errors.New("database user is required (POSTGRES_USER)")
	}
	if strings.TrimSpace(password) == "" {
		return config.DatabaseConfig{}, errors.New("database password is required (POSTGRES_PASSWORD)")
	}

	return config.DatabaseConfig{
		Host:     host,
		Port:     port,
		Name:     name,
		User:     user,
		Password: password,
		SSLMode:  sslmode,
	}, nil
}

func generateRandomPassword(bytesLen int) (string, error) {
	if bytesLen <= 0 {
		bytesLen = 24
	}
	buf := make([]byte, bytesLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
