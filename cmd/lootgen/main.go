// Package main provides the lootgen binary: it loads items and loot tables,
// rolls tables, fills containers, and validates the loaded data.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cory-johannsen/lootgen/internal/config"
	"github.com/cory-johannsen/lootgen/internal/game/inventory"
	"github.com/cory-johannsen/lootgen/internal/game/level"
	"github.com/cory-johannsen/lootgen/internal/game/loot"
	"github.com/cory-johannsen/lootgen/internal/game/randseq"
	"github.com/cory-johannsen/lootgen/internal/observability"
	"github.com/cory-johannsen/lootgen/internal/storage/postgres"
	"github.com/cory-johannsen/lootgen/internal/storage/redis"
)

// errProblems is returned by validate when any table has problems.
var errProblems = errors.New("loot data has validation problems")

const usage = `usage: lootgen [-config path] <command> [flags]

commands:
  roll      roll a table and print the generated stacks
  fill      fill a chest from a table and print its slots
  validate  validate every loaded table
  show      print a table in its canonical YAML form
`

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errProblems) {
			log.Printf("lootgen: %v", err)
		}
		os.Exit(1)
	}
}

// requestFlags are shared by roll and fill.
type requestFlags struct {
	table  string
	seed   int64
	luck   float64
	params paramFlag
}

func (r *requestFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&r.table, "table", "", "key of the table to roll")
	fs.Int64Var(&r.seed, "seed", 0, "fixed seed for this request; 0 uses the table's sequence")
	fs.Float64Var(&r.luck, "luck", 0, "luck of the request")
	fs.Var(&r.params, "param", "context parameter key=value (repeatable)")
}

// paramFlag collects repeated key=value parameters. Numeric values are
// passed as float64 and everything else as a string.
type paramFlag map[loot.ContextKey]any

func (p *paramFlag) String() string {
	keys := make([]string, 0, len(*p))
	for k := range *p {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

func (p *paramFlag) Set(v string) error {
	key, value, ok := strings.Cut(v, "=")
	if !ok || key == "" {
		return fmt.Errorf("parameter %q must be key=value", v)
	}
	if *p == nil {
		*p = make(paramFlag)
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		(*p)[loot.ContextKey(key)] = f
	} else {
		(*p)[loot.ContextKey(key)] = value
	}
	return nil
}

// app is the loaded runtime shared by every command.
type app struct {
	ctx    context.Context
	cfg    config.Config
	logger *zap.Logger
	level  *level.Level
	out    io.Writer
	close  func()
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	global := flag.NewFlagSet("lootgen", flag.ContinueOnError)
	global.SetOutput(stderr)
	configPath := global.String("config", "", "path to configuration file; empty uses defaults and LOOT_ environment")
	global.Usage = func() { fmt.Fprint(stderr, usage) }
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		global.Usage()
		return errors.New("missing command")
	}
	cmd, rest := global.Arg(0), global.Args()[1:]

	var handler func(*app, []string) error
	switch cmd {
	case "roll":
		handler = (*app).roll
	case "fill":
		handler = (*app).fill
	case "validate":
		handler = (*app).validate
	case "show":
		handler = (*app).show
	default:
		global.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger, err := observability.NewLoggerTo(cfg.Logging, zapcore.AddSync(stderr))
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	a, err := newApp(ctx, cfg, logger, stdout)
	if err != nil {
		return err
	}
	defer a.close()
	return handler(a, rest)
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger, out io.Writer) (*app, error) {
	start := time.Now()
	registry, err := level.LoadRegistry(level.ContentConfig{
		ItemsDir:         cfg.Content.ItemsDir,
		LootDir:          cfg.Content.LootDir,
		ScriptInstrLimit: cfg.Content.ScriptInstructionLimit,
	}, logger)
	if err != nil {
		return nil, err
	}

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	lvl := level.New(cfg.Level.Seed, registry, logger, level.WithSequenceStore(store))
	if err := lvl.Restore(ctx); err != nil {
		closeStore()
		return nil, err
	}
	logger.Info("level ready",
		zap.Int64("seed", cfg.Level.Seed),
		zap.String("sequences", cfg.Sequences.Backend),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &app{ctx: ctx, cfg: cfg, logger: logger, level: lvl, out: out, close: closeStore}, nil
}

// openStore connects the configured random sequence backend.
//
// Postcondition: the returned close function is always non-nil.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (randseq.Store, func(), error) {
	switch cfg.Sequences.Backend {
	case config.BackendPostgres:
		repo, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, func() {}, fmt.Errorf("connecting to database: %w", err)
		}
		logger.Info("database connected", zap.String("host", cfg.Database.Host))
		return repo, repo.Close, nil
	case config.BackendRedis:
		client, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, func() {}, err
		}
		logger.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
		return redis.NewSequenceStore(client, cfg.Redis.KeyPrefix), func() { _ = client.Close() }, nil
	default:
		return randseq.NewMemoryStore(), func() {}, nil
	}
}

func (a *app) params(req requestFlags, set loot.ParamSet) (*loot.Params, error) {
	b := loot.NewParamsBuilder(a.level).WithLuck(req.luck)
	for k, v := range req.params {
		b.WithParameter(k, v)
	}
	return b.Build(set)
}

func (a *app) roll(args []string) error {
	fs := flag.NewFlagSet("roll", flag.ContinueOnError)
	var req requestFlags
	req.register(fs)
	times := fs.Int("times", 1, "number of independent rolls")
	if err := fs.Parse(args); err != nil {
		return err
	}
	table, err := a.level.Table(req.table)
	if err != nil {
		return err
	}
	for i := 0; i < *times; i++ {
		params, err := a.params(req, table.ParamSet)
		if err != nil {
			return fmt.Errorf("building parameters: %w", err)
		}
		stacks := table.RandomItemsSeeded(params, rollSeed(req.seed, i))
		fmt.Fprintf(a.out, "roll %d:", i+1)
		if len(stacks) == 0 {
			fmt.Fprint(a.out, " nothing")
		}
		for _, s := range stacks {
			fmt.Fprintf(a.out, " %s×%d", s.ItemID(), s.Count)
		}
		fmt.Fprintln(a.out)
	}
	return a.level.Flush(a.ctx)
}

// rollSeed returns the fixed seed for the i-th roll of a repeated request.
// A zero base keeps every roll on the table's sequence.
//
// Postcondition: for a non-zero base the result is non-zero and distinct per i.
func rollSeed(base int64, i int) int64 {
	if base == 0 {
		return 0
	}
	seed := base + int64(i)
	if base < 0 && seed >= 0 {
		seed++
	}
	return seed
}

func (a *app) fill(args []string) error {
	fs := flag.NewFlagSet("fill", flag.ContinueOnError)
	var req requestFlags
	req.register(fs)
	size := fs.Int("size", 27, "number of chest slots")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *size < 1 {
		return fmt.Errorf("size must be >= 1, got %d", *size)
	}
	table, err := a.level.Table(req.table)
	if err != nil {
		return err
	}
	params, err := a.params(req, table.ParamSet)
	if err != nil {
		return fmt.Errorf("building parameters: %w", err)
	}
	chest := inventory.NewChest(*size)
	table.Fill(chest, params, req.seed)
	fmt.Fprintln(a.out, chest.String())
	fmt.Fprintf(a.out, "used %d/%d slots, %d items, weight %.2f\n",
		chest.UsedSlots(), chest.Size(), chest.TotalCount(), chest.TotalWeight())
	return a.level.Flush(a.ctx)
}

func (a *app) validate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	problems := a.level.Registry().ValidateAll()
	tables := len(a.level.Registry().Tables())
	if len(problems) == 0 {
		fmt.Fprintf(a.out, "%d tables ok\n", tables)
		return nil
	}
	fmt.Fprint(a.out, loot.FormatProblems(problems))
	fmt.Fprintf(a.out, "%d problems in %d tables\n", len(problems), tables)
	return errProblems
}

func (a *app) show(args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	key := fs.String("table", "", "key of the table to print")
	if err := fs.Parse(args); err != nil {
		return err
	}
	table, err := a.level.Table(*key)
	if err != nil {
		return err
	}
	data, err := loot.EncodeTable(table)
	if err != nil {
		return fmt.Errorf("encoding table %q: %w", *key, err)
	}
	_, err = a.out.Write(data)
	return err
}
