// 导入测评定义脚本
//
// 从 YAML 文件读取测评定义，按 question_bank.source 写入数据库或对象存储。
// 导入后会清除对应的定义缓存。
//
// 用法: go run scripts/seed_definitions.go -file definitions.yaml

package main

import (
	"assessment_engine/internal/config"
	"assessment_engine/internal/model"
	"assessment_engine/internal/repository"
	"assessment_engine/internal/service"
	"assessment_engine/internal/util"
	"assessment_engine/pkg/database"
	"assessment_engine/pkg/logger"
	"context"
	"flag"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Assessments []model.AssessmentDefinition `yaml:"assessments"`
}

func main() {
	file := flag.String("file", "definitions.yaml", "测评定义 YAML 文件")
	configDir := flag.String("config", "configs", "配置文件目录")
	flag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}
	logger.InitLogger(cfg)

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("无法读取定义文件: %v", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		log.Fatalf("解析定义文件失败: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var write func(context.Context, *model.AssessmentDefinition) error
	switch cfg.QuestionBank.Source {
	case util.QuestionBankObject:
		storage, err := service.NewStorageProvider(&cfg.Storage)
		if err != nil {
			log.Fatalf("对象存储初始化失败: %v", err)
		}
		write = service.NewObjectQuestionBank(storage, cfg.QuestionBank.Prefix).PutDefinition
	default:
		db, err := database.InitDB(&cfg.Database, cfg.Server.Mode)
		if err != nil {
			log.Fatalf("数据库连接失败: %v", err)
		}
		if err := database.Migrate(db); err != nil {
			log.Fatalf("数据库迁移失败: %v", err)
		}
		write = repository.NewAssessmentRepository(db).Upsert
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		log.Printf("Redis 不可用，跳过缓存清理: %v", err)
	}
	cache := service.NewCachedQuestionBank(nil, rdb, 0)

	for i := range seed.Assessments {
		def := &seed.Assessments[i]
		if err := write(ctx, def); err != nil {
			log.Fatalf("导入测评 %q 失败: %v", def.Title, err)
		}
		if err := cache.Invalidate(ctx, def.ID); err != nil {
			log.Printf("清除缓存失败 %d: %v", def.ID, err)
		}
		log.Printf("已导入测评 %d: %s (%d 题)", def.ID, def.Title, len(def.Questions))
	}
	log.Println("完成！")
}
