package app

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/femibol/propel-command-center/internal/config"
	"github.com/femibol/propel-command-center/internal/domain"
	"github.com/femibol/propel-command-center/internal/pipeline"
)

// Context is bound to every command's Run method.
type Context struct {
	Ctx        context.Context
	ConfigPath string
	EnvFile    string
	Out        io.Writer
	In         io.Reader
}

func (c *Context) load() (config.Config, error) {
	if c.EnvFile != "" {
		if err := godotenv.Load(c.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return config.Config{}, fmt.Errorf("load %s: %w", c.EnvFile, err)
		}
	}
	return config.LoadFile(c.ConfigPath)
}

func (c *Context) open() (*App, config.Config, error) {
	cfg, err := c.load()
	if err != nil {
		return nil, config.Config{}, err
	}
	a, err := New(c.Ctx, cfg)
	if err != nil {
		return nil, config.Config{}, err
	}
	return a, cfg, nil
}

func (c *Context) printJSON(v any) error {
	enc := json.NewEncoder(c.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Range is an inclusive date range defaulting to the current week.
type Range struct {
	Start string `help:"First day (YYYY-MM-DD). Defaults to this week's Monday."`
	End   string `help:"Last day (YYYY-MM-DD). Defaults to this week's Sunday."`
}

func (r Range) resolve(now time.Time) (string, string, error) {
	start, end := r.Start, r.End
	if start == "" || end == "" {
		monday, nextMonday := domain.WeekRangeAt(now)
		if start == "" {
			start = monday.Format(domain.DayLayout)
		}
		if end == "" {
			end = nextMonday.AddDate(0, 0, -1).Format(domain.DayLayout)
		}
	}
	if err := pipeline.ValidateRange(start, end); err != nil {
		return "", "", err
	}
	return start, end, nil
}

type ServeCmd struct{}

func (s *ServeCmd) Run(c *Context) error {
	a, _, err := c.open()
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Serve(c.Ctx)
}

type TimesheetCmd struct {
	Range  `embed:""`
	Assist bool `help:"Review unmatched blocks with the configured LLM."`
}

func (t *TimesheetCmd) Run(c *Context) error {
	a, cfg, err := c.open()
	if err != nil {
		return err
	}
	defer a.Close()

	start, end, err := t.resolve(time.Now().In(cfg.Location))
	if err != nil {
		return err
	}
	report, err := a.pipeline.Match(c.Ctx, start, end, a.Tasks(c.Ctx), t.Assist)
	if err != nil {
		return err
	}
	return c.printJSON(report)
}

type BlocksCmd struct {
	Range `embed:""`
}

func (b *BlocksCmd) Run(c *Context) error {
	a, cfg, err := c.open()
	if err != nil {
		return err
	}
	defer a.Close()

	start, end, err := b.resolve(time.Now().In(cfg.Location))
	if err != nil {
		return err
	}
	report, err := a.pipeline.Blocks(c.Ctx, start, end)
	if err != nil {
		return err
	}
	return c.printJSON(report)
}

type StatsCmd struct{}

func (s *StatsCmd) Run(c *Context) error {
	a, _, err := c.open()
	if err != nil {
		return err
	}
	defer a.Close()
	return c.printJSON(a.reader.Stats(c.Ctx))
}

type SecretSetCmd struct {
	Name  string `arg:"" help:"Secret name (anthropic_api_key, openai_api_key, monday_api_token, slack_bot_token)."`
	Value string `arg:"" optional:"" help:"Secret value. Read from stdin when omitted."`
}

func (s *SecretSetCmd) Run(c *Context) error {
	value := s.Value
	if value == "" {
		line, err := bufio.NewReader(c.In).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read secret: %w", err)
		}
		value = strings.TrimSpace(line)
	}
	if value == "" {
		return errors.New("secret value is empty")
	}
	if err := config.SetSecret(s.Name, value); err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "stored %s in the %s keyring\n", s.Name, config.KeyringService)
	return nil
}

type SecretDeleteCmd struct {
	Name string `arg:"" help:"Secret name."`
}

func (s *SecretDeleteCmd) Run(c *Context) error {
	if err := config.DeleteSecret(s.Name); err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "deleted %s\n", s.Name)
	return nil
}

// CLI is the root command tree.
type CLI struct {
	Config  string `help:"Config file path." type:"path" default:"config.yaml" env:"CONFIG_PATH"`
	EnvFile string `help:"Dotenv file loaded before the config." default:".env" name:"env-file"`

	Serve     ServeCmd     `cmd:"" help:"Run the HTTP API and schedulers." default:"1"`
	Timesheet TimesheetCmd `cmd:"" help:"Print the timesheet for a date range as JSON."`
	Blocks    BlocksCmd    `cmd:"" help:"Print activity blocks for a date range as JSON."`
	Stats     StatsCmd     `cmd:"" help:"Print monitoring agent database stats."`
	Secret    struct {
		Set    SecretSetCmd    `cmd:"" help:"Store a secret in the OS keyring."`
		Delete SecretDeleteCmd `cmd:"" help:"Remove a secret from the OS keyring."`
	} `cmd:"" help:"Manage secrets."`
}
