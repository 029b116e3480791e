package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	defaultBase := os.Getenv("PROBE_BASE_URL")
	if defaultBase == "" {
		defaultBase = "http://localhost:8080"
	}

	baseURL := flag.String("base", defaultBase, "后端服务地址")
	names := flag.String("scenario", "all", "要运行的场景，逗号分隔；all 表示全部")
	list := flag.Bool("list", false, "列出可用场景")
	timeout := flag.Duration("timeout", 30*time.Second, "整体超时时间")

	flag.Parse()

	if *list {
		for _, name := range scenarioNames() {
			sc, _ := lookupScenario(name)
			fmt.Printf("%-18s -> %s\n", name, sc.Want)
		}
		return
	}

	selected := scenarioNames()
	if *names != "all" {
		selected = strings.Split(*names, ",")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	p := &probe{baseURL: *baseURL, client: &http.Client{Timeout: 10 * time.Second}, out: os.Stdout}

	failed := 0
	for _, name := range selected {
		sc, ok := lookupScenario(strings.TrimSpace(name))
		if !ok {
			log.Printf("[FAIL] 未知场景 %q", name)
			failed++
			continue
		}
		if err := p.run(ctx, sc); err != nil {
			log.Printf("[FAIL] %s: %v", sc.Name, err)
			failed++
			continue
		}
		log.Printf("[PASS] %s", sc.Name)
	}

	if failed > 0 {
		log.Fatalf("%d/%d 个场景失败", failed, len(selected))
	}
	log.Printf("全部 %d 个场景通过", len(selected))
}
