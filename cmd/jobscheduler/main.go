package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "jobscheduler",
	Short: "单进程的定时任务调度服务",
	Long: `jobscheduler 持久化Job定义，按CRON / FIXED_RATE / FIXED_DELAY计划触发执行，
并把每次执行的结果写入执行日志。

配置来源优先级：环境变量(JOBSCHED_*) > 配置文件 > 默认值`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(jobsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
