// Command playrec 对游戏游玩数据做推荐、比较与离线批处理。
//
//	playrec recommend -user alice -mode content -k 10
//	playrec compare   -user alice -order popularity
//	playrec batch     -mode consistency -workers 8
//	playrec ratios    -resume
//	playrec pipeline  -file content.yaml -user alice
//
// 每个子命令都接受 -config 指定 YAML 配置（缺省读取 PLAYREC_CONFIG），
// 环境变量 PLAYREC_* 覆盖文件中的值。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/goccy/go-json"

	"github.com/rushteam/playrec/batch"
	"github.com/rushteam/playrec/config"
	_ "github.com/rushteam/playrec/config/builders"
	"github.com/rushteam/playrec/core"
	"github.com/rushteam/playrec/match"
	"github.com/rushteam/playrec/pipeline"
	"github.com/rushteam/playrec/pkg/logging"
	"github.com/rushteam/playrec/recommend"
	"github.com/rushteam/playrec/score"
)

// exitNoRecommendation 表示请求合法但没有可推荐的结果。
const exitNoRecommendation = 2

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, args []string, out io.Writer) error
}

var commands = []command{
	{"recommend", "recommend items for one user", runRecommend},
	{"compare", "compare a user's top items with the global list (metric x strategy)", runCompare},
	{"batch", "recommend or measure consistency for many users in parallel", runBatch},
	{"ratios", "recompute per-user play-ratio vectors", runRatios},
	{"pipeline", "run a YAML-defined node pipeline for one user", runPipeline},
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	name, args := flag.Arg(0), flag.Args()[1:]
	for _, c := range commands {
		if c.name != name {
			continue
		}
		err := c.run(ctx, args, os.Stdout)
		switch {
		case err == nil:
			return
		case core.IsNoRecommendation(err):
			fmt.Fprintf(os.Stderr, "playrec %s: no recommendation: %v\n", name, err)
			os.Exit(exitNoRecommendation)
		default:
			fmt.Fprintf(os.Stderr, "playrec %s: %v\n", name, err)
			os.Exit(1)
		}
	}
	fmt.Fprintf(os.Stderr, "playrec: unknown command %q\n", name)
	usage()
	os.Exit(1)
}

func usage() {
	w := flag.CommandLine.Output()
	fmt.Fprintf(w, "Usage: %s <command> [options]\n\nCommands:\n", filepath.Base(os.Args[0]))
	for _, c := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", c.name, c.usage)
	}
	fmt.Fprintf(w, "\nRun '%s <command> -h' for command options.\n", filepath.Base(os.Args[0]))
}

// common 是所有子命令共享的参数。
type common struct {
	configPath string
	json       bool
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "Path to YAML config (default: $"+config.ConfigPathEnvVar+")")
	fs.BoolVar(&c.json, "json", false, "Print JSON instead of text")
}

// setup 加载配置、初始化日志并打开存储。
func (c *common) setup(ctx context.Context) (*config.Config, *backend, error) {
	cfg, err := config.Load(strings.TrimSpace(c.configPath))
	if err != nil {
		return nil, nil, err
	}
	logging.Init(cfg.Logging)
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, b, nil
}

func newService(cfg *config.Config, b *backend) (*recommend.Service, error) {
	opts, err := recommend.OptionsFromConfig(cfg.Recommend)
	if err != nil {
		return nil, err
	}
	return recommend.NewService(b.play, b.derived, opts), nil
}

func runRecommend(ctx context.Context, args []string, out io.Writer) error {
	var (
		c      common
		userID string
		mode   string
		k      int
	)
	fs := flag.NewFlagSet("recommend", flag.ExitOnError)
	c.register(fs)
	fs.StringVar(&userID, "user", "", "User ID (required)")
	fs.StringVar(&mode, "mode", "content", "content, neighbor or maxsim")
	fs.IntVar(&k, "k", 0, "Number of recommendations (default: recommend.k)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if userID == "" {
		fs.Usage()
		return errors.New("missing required -user")
	}
	m, err := recommend.ParseMode(mode)
	if err != nil {
		return err
	}

	cfg, b, err := c.setup(ctx)
	if err != nil {
		return err
	}
	defer b.Close()
	svc, err := newService(cfg, b)
	if err != nil {
		return err
	}

	report, err := svc.Recommend(ctx, recommend.Request{UserID: userID, Mode: m, K: k})
	if err != nil {
		return err
	}
	if c.json {
		return writeJSON(out, report)
	}
	fmt.Fprintf(out, "user %s  mode %s  request %s\n", report.UserID, report.Mode, report.RequestID)
	writeList(out, report.Recommendations)
	if report.Match != nil {
		writeMatch(out, *report.Match)
	}
	return nil
}

func runCompare(ctx context.Context, args []string, out io.Writer) error {
	var (
		c          common
		userID     string
		order      string
		k          int
		metrics    string
		strategies string
	)
	fs := flag.NewFlagSet("compare", flag.ExitOnError)
	c.register(fs)
	fs.StringVar(&userID, "user", "", "User ID (required)")
	fs.StringVar(&order, "order", "playtime", "Global list order: playtime, combined or popularity")
	fs.IntVar(&k, "k", 0, "Size of both lists (default: recommend.seed_k)")
	fs.StringVar(&metrics, "metrics", "", "Comma-separated metrics (default: all)")
	fs.StringVar(&strategies, "strategies", "", "Comma-separated strategies (default: all)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if userID == "" {
		fs.Usage()
		return errors.New("missing required -user")
	}
	req := recommend.CompareRequest{UserID: userID, K: k}
	var err error
	if req.Order, err = core.ParseOrder(order); err != nil {
		return err
	}
	for _, s := range splitList(metrics) {
		m, err := score.ParseMetric(s)
		if err != nil {
			return err
		}
		req.Metrics = append(req.Metrics, m)
	}
	for _, s := range splitList(strategies) {
		st, err := match.ParseStrategy(s)
		if err != nil {
			return err
		}
		req.Strategies = append(req.Strategies, st)
	}

	cfg, b, err := c.setup(ctx)
	if err != nil {
		return err
	}
	defer b.Close()
	svc, err := newService(cfg, b)
	if err != nil {
		return err
	}

	report, err := svc.Compare(ctx, req)
	if err != nil {
		return err
	}
	if c.json {
		return writeJSON(out, report)
	}
	fmt.Fprintf(out, "user %s top:\n", report.UserID)
	writeList(out, report.UserTop)
	fmt.Fprintf(out, "global top by %s:\n", report.Order)
	writeList(out, report.Global)
	for _, r := range report.Results {
		writeMatch(out, r)
	}
	return nil
}

func runBatch(ctx context.Context, args []string, out io.Writer) error {
	var (
		c       common
		mode    string
		users   string
		k       int
		workers int
	)
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	c.register(fs)
	fs.StringVar(&mode, "mode", "content", "content, neighbor, maxsim or consistency")
	fs.StringVar(&users, "users", "", "Comma-separated user IDs (default: all users)")
	fs.IntVar(&k, "k", 0, "Recommendations per user (default: recommend.k)")
	fs.IntVar(&workers, "workers", 0, "Parallel workers (default: batch.workers)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, b, err := c.setup(ctx)
	if err != nil {
		return err
	}
	defer b.Close()
	svc, err := newService(cfg, b)
	if err != nil {
		return err
	}
	if workers <= 0 {
		workers = cfg.Batch.Workers
	}
	r := &batch.Runner{Service: svc, Workers: workers, K: k}

	var report *batch.Report
	if mode == "consistency" {
		report, err = r.RunConsistency(ctx, splitList(users))
	} else {
		if r.Mode, err = recommend.ParseMode(mode); err != nil {
			return err
		}
		if !c.json {
			r.OnResult = func(res batch.Result) {
				if res.Report != nil {
					fmt.Fprintf(out, "%s\t%s\n", res.UserID, strings.Join(itemIDs(res.Report.Recommendations), ","))
				}
			}
		}
		report, err = r.Run(ctx, splitList(users))
	}
	if err != nil {
		return err
	}
	if c.json {
		return writeJSON(out, report)
	}
	fmt.Fprintf(out, "batch %s: total %d, succeeded %d, no recommendation %d, failed %d\n",
		report.BatchID, report.Total, report.Succeeded, report.NoRecommendation, report.FailedTotal())
	for _, code := range report.FailedCodes() {
		fmt.Fprintf(out, "  %s: %d\n", code, report.Failed[code])
	}
	if report.MeanRho != nil {
		fmt.Fprintf(out, "mean spearman rho: %.4f\n", *report.MeanRho)
	}
	return nil
}

func runRatios(ctx context.Context, args []string, out io.Writer) error {
	var (
		c      common
		chunk  int
		resume bool
	)
	fs := flag.NewFlagSet("ratios", flag.ExitOnError)
	c.register(fs)
	fs.IntVar(&chunk, "chunk", 0, "Users per commit (default: batch.chunk_size)")
	fs.BoolVar(&resume, "resume", false, "Skip users that already have a play-ratio vector (default: batch.resume)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, b, err := c.setup(ctx)
	if err != nil {
		return err
	}
	defer b.Close()
	if chunk <= 0 {
		chunk = cfg.Batch.ChunkSize
	}
	job := &batch.RatioJob{
		Store:     b.play,
		Writer:    b.derived,
		ChunkSize: chunk,
		Resume:    resume || cfg.Batch.Resume,
		Committed: b.committed,
	}
	report, err := job.Run(ctx)
	if err != nil {
		return err
	}
	if c.json {
		return writeJSON(out, report)
	}
	fmt.Fprintf(out, "ratios %s: users %d, written %d, resumed %d, chunks %d, dimension %d\n",
		report.BatchID, report.Users, report.Written, report.Resumed, report.Chunks, report.Dimension)
	return nil
}

func runPipeline(ctx context.Context, args []string, out io.Writer) error {
	var (
		c      common
		file   string
		userID string
		k      int
	)
	fs := flag.NewFlagSet("pipeline", flag.ExitOnError)
	c.register(fs)
	fs.StringVar(&file, "file", "", "Pipeline file, .yaml or .json (required)")
	fs.StringVar(&userID, "user", "", "User ID (required)")
	fs.IntVar(&k, "k", 0, "Value of the k request parameter (default: recommend.k)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if file == "" || userID == "" {
		fs.Usage()
		return errors.New("missing required -file or -user")
	}
	pcfg, err := pipeline.LoadFile(file)
	if err != nil {
		return err
	}

	cfg, b, err := c.setup(ctx)
	if err != nil {
		return err
	}
	defer b.Close()
	p, err := config.BuildPipeline(pcfg, pipeline.Deps{Store: b.play, Derived: b.derived})
	if err != nil {
		return err
	}
	if k <= 0 {
		k = cfg.Recommend.K
	}

	ctx = logging.ContextWithNewRequestID(ctx)
	rctx := &core.RecommendContext{
		UserID:    userID,
		RequestID: logging.RequestIDFromContext(ctx),
		Mode:      p.Name,
		Params: map[string]any{
			core.ParamK:         k,
			core.ParamNeighborK: cfg.Recommend.NeighborK,
		},
	}
	items, err := p.Run(ctx, rctx, nil)
	if err != nil {
		return err
	}
	recs := core.ToRecommendations(items)
	if c.json {
		return writeJSON(out, recs)
	}
	writeList(out, recs)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeList(w io.Writer, recs []core.Recommendation) {
	if len(recs) == 0 {
		fmt.Fprintln(w, "  (empty)")
		return
	}
	for i, r := range recs {
		fmt.Fprintf(w, "  %2d. %-12s %-40s %.6f\n", i+1, r.ItemID, r.Name, r.Score)
	}
}

func writeMatch(w io.Writer, m recommend.MatchReport) {
	fmt.Fprintf(w, "match %s/%s: pairs %d, total %.4f, mean %.4f, skipped %d\n",
		m.Metric, m.Strategy, len(m.Pairs), m.Total, m.Mean, m.Skipped)
}

func itemIDs(recs []core.Recommendation) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ItemID
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
