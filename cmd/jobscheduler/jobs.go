package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/TimeWtr/job_scheduler/domain"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// jobs子命令直接操作存储，运行中的serve进程由一致性巡检同步队列
// runWaitMargin jobs run在执行超时之外额外等待日志写入的时间
const runWaitMargin = 10 * time.Second

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "管理Job",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出所有未删除的Job",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		jobs, err := a.engine.ListJobs(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSCHEDULE\tSTATUS\tVERSION")
		for _, job := range jobs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
				job.ID, job.Name, describeSchedule(job.Schedule), job.Status, job.Version)
		}
		return w.Flush()
	},
}

var jobsLogsCmd = &cobra.Command{
	Use:   "logs <job-id>",
	Short: "查看Job的执行日志，最新的在前",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return errors.Wrapf(err, "invalid job id %q", args[0])
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		entries, err := a.engine.GetExecutionLogs(cmd.Context(), id)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "FIRE TIME\tOUTCOME\tCOMPLETED\tERROR")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				e.FireTime.Format(time.RFC3339), e.Outcome, e.CreatedAt.Format(time.RFC3339), e.Error)
		}
		return w.Flush()
	},
}

var (
	createName        string
	createDescription string
	createCron        string
	createRate        time.Duration
	createDelay       time.Duration
	createInitial     time.Duration
	createPayload     string
)

var jobsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "创建Job，--cron / --rate / --delay 三选一",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		schedule, err := scheduleFromFlags()
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		job, err := a.engine.CreateJob(cmd.Context(), domain.JobSpec{
			Name:        createName,
			Description: createDescription,
			Schedule:    schedule,
			Payload:     []byte(createPayload),
		})
		if err != nil {
			return err
		}
		cmd.Println(job.ID)
		return nil
	},
}

func scheduleFromFlags() (domain.Schedule, error) {
	var schedules []domain.Schedule
	if createCron != "" {
		schedules = append(schedules, domain.CronSchedule(createCron))
	}
	if createRate > 0 {
		schedules = append(schedules, domain.FixedRateSchedule(createRate))
	}
	if createDelay > 0 {
		schedules = append(schedules, domain.FixedDelaySchedule(createDelay, createInitial))
	}
	if len(schedules) != 1 {
		return domain.Schedule{}, errors.New("exactly one of --cron, --rate, --delay is required")
	}
	return schedules[0], nil
}

// jobControlCmd pause / resume / delete 共用的结构
func jobControlCmd(use, short string, fn func(a *app, cmd *cobra.Command, id uuid.UUID) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <job-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return errors.Wrapf(err, "invalid job id %q", args[0])
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			return fn(a, cmd, id)
		},
	}
}

func describeSchedule(s domain.Schedule) string {
	switch {
	case s.CronExpression != "":
		return fmt.Sprintf("%s(%s)", s.Kind, s.CronExpression)
	case s.InitialDelay > 0:
		return fmt.Sprintf("%s(%s, initial %s)", s.Kind, s.Interval, s.InitialDelay)
	default:
		return fmt.Sprintf("%s(%s)", s.Kind, s.Interval)
	}
}

func init() {
	f := jobsCreateCmd.Flags()
	f.StringVar(&createName, "name", "", "Job名称，同时用于匹配执行器")
	f.StringVar(&createDescription, "description", "", "描述")
	f.StringVar(&createCron, "cron", "", "cron表达式，支持5位或6位(秒)")
	f.DurationVar(&createRate, "rate", 0, "FIXED_RATE间隔")
	f.DurationVar(&createDelay, "delay", 0, "FIXED_DELAY间隔")
	f.DurationVar(&createInitial, "initial-delay", 0, "FIXED_DELAY首次触发的延迟")
	f.StringVar(&createPayload, "payload", "", "透传给执行器的负载")
	_ = jobsCreateCmd.MarkFlagRequired("name")

	jobsCmd.AddCommand(jobsListCmd, jobsLogsCmd, jobsCreateCmd,
		jobControlCmd("pause", "暂停Job", func(a *app, cmd *cobra.Command, id uuid.UUID) error {
			_, err := a.engine.PauseJob(cmd.Context(), id)
			return err
		}),
		jobControlCmd("resume", "恢复Job", func(a *app, cmd *cobra.Command, id uuid.UUID) error {
			_, err := a.engine.ResumeJob(cmd.Context(), id)
			return err
		}),
		jobControlCmd("delete", "删除Job，执行日志保留", func(a *app, cmd *cobra.Command, id uuid.UUID) error {
			return a.engine.DeleteJob(cmd.Context(), id)
		}),
		jobControlCmd("run", "在当前进程用默认执行器立即执行一次，等待执行日志写入后退出",
			func(a *app, cmd *cobra.Command, id uuid.UUID) error {
				if err := a.engine.RunNow(cmd.Context(), id); err != nil {
					return err
				}
				// 引擎未启动，Stop只等待这次执行完成
				ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Scheduler.MaxExecutionDuration+runWaitMargin)
				defer cancel()
				return a.engine.Stop(ctx)
			}),
	)
}
