// @title AI Images Agent API
// @version 1.0
// @description Image upload pipeline: validation, compression, publishing and AI description
// @host localhost:8080
// @BasePath /api
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"ai-images-server-go/internal/bootstrap"
)

func main() {
	fmt.Printf("[%s] [INFO] [引导] 开始启动 ai-images-server...\n", time.Now().Format("2006-01-02 15:04:05.000"))
	if err := bootstrap.Run(context.Background()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "ai-images-server failed: %v\n", err)
		os.Exit(1)
	}
}
