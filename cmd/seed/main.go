package main

import (
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"StockRadar/pkg/config"
	"StockRadar/pkg/database"
	"StockRadar/pkg/model"
)

// seedFile 种子数据文件结构
type seedFile struct {
	Plans []struct {
		Name       string  `yaml:"name"`
		Price      float64 `yaml:"price"`
		MaxWatches int     `yaml:"max_watches"`
	} `yaml:"plans"`
	Instruments []struct {
		Ticker string `yaml:"ticker"`
		Name   string `yaml:"name"`
	} `yaml:"instruments"`
}

func main() {
	log.Println("开始导入种子数据...")

	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v\n", err)
	}

	// 种子数据文件
	seedPath := os.Getenv("SEED_PATH")
	if seedPath == "" {
		seedPath = "configs/seed.yaml"
	}

	data, err := os.ReadFile(seedPath)
	if err != nil {
		log.Fatalf("读取种子数据文件失败: %v\n", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		log.Fatalf("解析种子数据失败: %v\n", err)
	}

	// 连接数据库
	db, err := database.NewPostgres(cfg)
	if err != nil {
		log.Fatalf("连接数据库失败: %v\n", err)
	}
	defer db.Close()

	// 导入档位
	for _, p := range seed.Plans {
		plan := model.Plan{Name: p.Name, Price: p.Price, MaxWatches: p.MaxWatches}
		if err := db.Plan().Upsert(&plan); err != nil {
			log.Fatalf("导入档位 %s 失败: %v\n", p.Name, err)
		}
	}
	log.Printf("已导入 %d 个档位", len(seed.Plans))

	// 导入标的
	for _, i := range seed.Instruments {
		instrument := model.Instrument{Ticker: i.Ticker, Name: i.Name}
		if err := db.Instrument().Upsert(&instrument); err != nil {
			log.Fatalf("导入标的 %s 失败: %v\n", i.Ticker, err)
		}
	}

	count, err := db.Instrument().Count()
	if err != nil {
		log.Fatalf("统计标的数量失败: %v\n", err)
	}
	log.Printf("种子数据导入完成, 当前共 %d 个标的", count)
}
