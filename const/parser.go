package _const

import (
	"github.com/robfig/cron/v3"
)

// Parser 定时时间解析器，支持5位和带秒的6位表达式以及@描述符
var Parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour |
	cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
