package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"market_monitor/internal/models"
	"market_monitor/internal/modules/config"
	"market_monitor/internal/modules/configstore"
	"market_monitor/internal/modules/kvstore"
	"market_monitor/internal/modules/operator/service"
)

const usage = `usage:
  quantctl config get [--yaml]
  quantctl config set <file.json>
  quantctl quant reset|start|stop [--symbol S]
  quantctl quant status
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "quantctl:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) < 2 {
		return errors.New("missing command\n" + usage)
	}
	cfg, err := config.NewToolConfig()
	if err != nil {
		return err
	}
	kv, closeKV := openKV(cfg)
	defer closeKV()

	log := zap.NewNop()
	op := service.New(kv, configstore.New(kv, configstore.Seed{
		QuantMode:   models.QuantMode(cfg.QuantModeDefault),
		QuantSymbol: cfg.QuantSymbolDefault,
	}, log), log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch args[0] {
	case "config":
		return configCmd(ctx, op, args[1], args[2:], out)
	case "quant":
		return quantCmd(ctx, op, args[1], args[2:], out)
	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}

func openKV(cfg *config.Config) (kvstore.Store, func()) {
	if cfg.Redis.Addr == "" {
		// без redis команды некому доставить, но get/set конфига полезны в отладке
		return kvstore.NewMemoryStore(cfg.KVNamespace), func() {}
	}
	rs := kvstore.NewRedisStore(kvstore.RedisConfig{
		Addr:      cfg.Redis.Addr,
		Password:  cfg.Redis.Password,
		DB:        cfg.Redis.DB,
		Namespace: cfg.KVNamespace,
	}, zap.NewNop())
	return rs, func() { _ = rs.Close() }
}

func configCmd(ctx context.Context, op *service.Operator, sub string, args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("config "+sub, pflag.ContinueOnError)
	asYAML := fs.Bool("yaml", false, "print as yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch sub {
	case "get":
		doc, err := op.Config(ctx)
		if err != nil {
			return err
		}
		return printDoc(out, doc, *asYAML)
	case "set":
		if fs.NArg() != 1 {
			return errors.New("config set needs exactly one file")
		}
		raw, err := os.ReadFile(fs.Arg(0))
		if err != nil {
			return errors.Wrap(err, "read config file")
		}
		var doc models.ConfigDoc
		if err := sonic.Unmarshal(raw, &doc); err != nil {
			return errors.Wrap(err, "decode config file")
		}
		saved, err := op.SaveConfig(ctx, doc)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "saved version %d\n", saved.Version)
		return nil
	default:
		return fmt.Errorf("unknown config command %q", sub)
	}
}

func printDoc(out io.Writer, doc *models.ConfigDoc, asYAML bool) error {
	raw, err := sonic.ConfigStd.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if !asYAML {
		_, err = fmt.Fprintln(out, string(raw))
		return err
	}
	// через map, чтобы ключи yaml совпадали с json
	var generic map[string]any
	if err := sonic.Unmarshal(raw, &generic); err != nil {
		return err
	}
	y, err := yaml.Marshal(generic)
	if err != nil {
		return errors.Wrap(err, "marshal config to yaml")
	}
	_, err = out.Write(y)
	return err
}

func quantCmd(ctx context.Context, op *service.Operator, sub string, args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("quant "+sub, pflag.ContinueOnError)
	symbol := fs.String("symbol", "", "quant symbol, defaults to the configured one")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if sub == "status" {
		st, err := op.QuantStatus(ctx)
		if err != nil {
			return errors.Wrap(err, "read quant status")
		}
		_, err = fmt.Fprintln(out, service.FormatStatus(st))
		return err
	}

	action, err := service.ParseAction(sub)
	if err != nil {
		return err
	}
	sym, err := op.Quant(ctx, *symbol, action)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s %s queued\n", sym, action)
	return nil
}
