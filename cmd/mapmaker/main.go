package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"

	"mapmaker/internal/compose"
	"mapmaker/internal/config"
	"mapmaker/internal/geo"
	"mapmaker/internal/logger"
	"mapmaker/internal/mapmaker"
	"mapmaker/internal/metrics"
	"mapmaker/internal/overlay"
	"mapmaker/internal/render"
	"mapmaker/internal/tilesource"
	"mapmaker/internal/version"
)

// listFlag 繰り返し指定できる文字列フラグ
type listFlag []string

func (l *listFlag) String() string     { return strings.Join(*l, "; ") }
func (l *listFlag) Set(v string) error { *l = append(*l, v); return nil }

type options struct {
	configPath  string
	zoom        int
	style       string
	aspect      string
	hillshading bool
	copyright   bool
	title       string
	comment     string
	margin      string
	background  string
	frame       string
	compass     bool
	scale       bool
	markers     listFlag
	circles     listFlag
	gallery     bool
	dryRun      bool
	listStyles  bool
	silent      bool
	logLevel    string
	logFormat   string
	metricsFile string
	showVersion bool
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: mapmaker [flags] AREA AREA [PATH]\n\n")
	fmt.Fprintf(out, "AREA is either two lat,lon corners (\"47.437,10.953 47.374,11.133\")\n")
	fmt.Fprintf(out, "or a center and a radius (\"47.437,10.953 4km\"). PATH defaults to map.png.\n\n")
	flag.PrintDefaults()
}

func main() {
	// .env があれば読み込む (API キーや DISCORD_TOKEN)
	_ = godotenv.Load()

	var o options
	flag.StringVar(&o.configPath, "config", "", "Configuration file (default: "+config.DefaultPath()+")")
	flag.IntVar(&o.zoom, "zoom", mapmaker.DefaultZoom, "Zoom level 0..19, higher means more detailed")
	flag.StringVar(&o.style, "style", mapmaker.DefaultStyle, "Map style (see -list-styles)")
	flag.StringVar(&o.aspect, "aspect", "", "Aspect ratio such as 16:9, extends the area to match")
	flag.BoolVar(&o.hillshading, "shading", false, "Add hillshading")
	flag.BoolVar(&o.copyright, "copyright", false, "Add the copyright notice of the tile provider")
	flag.StringVar(&o.title, "title", "", "Title: [PLACEMENT] [BORDER] [COLOR] [BACKGROUND] TEXT")
	flag.StringVar(&o.comment, "comment", "", "Comment: [PLACEMENT] [BORDER] [COLOR] [BACKGROUND] TEXT")
	flag.StringVar(&o.margin, "margin", "", "Margin around the map: \"ALL\", \"V H\" or \"TOP RIGHT BOTTOM LEFT\"")
	flag.StringVar(&o.background, "background", "", "Background color of the margin as R,G,B[,A] or #RRGGBB[AA] (default: white)")
	flag.StringVar(&o.frame, "frame", "", "Frame around the map: any of WIDTH COLOR ALT_COLOR STYLE (solid, coordinates)")
	flag.BoolVar(&o.compass, "compass", false, "Draw a compass rose on the map")
	flag.BoolVar(&o.scale, "scale", false, "Draw a scale bar on the map")
	flag.Var(&o.markers, "marker", "Marker lat,lon[,label] (repeatable)")
	flag.Var(&o.circles, "circle", "Circle lat,lon,radius (repeatable)")
	flag.BoolVar(&o.gallery, "gallery", false, "Create an image for each style in the directory PATH")
	flag.BoolVar(&o.dryRun, "dry-run", false, "Show map info, do not download tiles")
	flag.BoolVar(&o.listStyles, "list-styles", false, "List the configured styles and exit")
	flag.BoolVar(&o.silent, "silent", false, "Do not print the report and progress")
	flag.StringVar(&o.logLevel, "log-level", "", "debug, info, warn or error (default: $LOG_LEVEL or info)")
	flag.StringVar(&o.logFormat, "log-format", "", "text or json (default: $LOG_FORMAT or text)")
	flag.StringVar(&o.metricsFile, "metrics-file", "", "Write prometheus metrics in textfile format after the run")
	flag.BoolVar(&o.showVersion, "version", false, "Print the version and exit")
	flag.Usage = usage
	flag.Parse()

	if o.showVersion {
		fmt.Println("mapmaker", version.Version)
		return
	}
	logger.Setup(o.logLevel, o.logFormat)

	if err := run(o, flag.Args()); err != nil {
		logger.L().Error("mapmaker failed", "error", err)
		os.Exit(1)
	}
}

func run(o options, args []string) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if cfg.Path != "" {
		logger.L().Info("using configuration", "path", cfg.Path)
	}

	if o.listStyles {
		listStyles(os.Stdout, cfg)
		return nil
	}

	if len(args) < 2 || len(args) > 3 {
		flag.Usage()
		return errors.New("expected AREA AREA [PATH]")
	}
	dst := "map.png"
	if len(args) == 3 {
		dst = args[2]
	}

	req, err := buildRequest(o, args[0], args[1])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := mapmaker.New(cfg)
	defer r.Close()

	defer func() {
		if o.metricsFile == "" {
			return
		}
		if err := metrics.WriteFile(o.metricsFile); err != nil {
			logger.L().Warn("could not write metrics", "path", o.metricsFile, "error", err)
		}
	}()

	// 設定の誤りはモードに関係なくここで返す
	if req, err = withReport(r, req, o); err != nil {
		return err
	}

	if o.gallery {
		saved, failed := r.Gallery(ctx, req, dst)
		for _, p := range saved {
			report(o, "Map saved to %s", p)
		}
		if len(failed) > 0 && len(saved) == 0 {
			return fmt.Errorf("gallery: all %d styles failed", len(failed))
		}
		return nil
	}

	if o.dryRun {
		return nil
	}
	if err := r.SaveFile(ctx, req, dst); err != nil {
		return err
	}
	report(o, "Map saved to %s", dst)
	return nil
}

// buildRequest フラグから注文を組み立てる。ダウンロード前にすべて検証する
func buildRequest(o options, first, second string) (mapmaker.Request, error) {
	bbox, err := geo.ParseArea(first, second)
	if err != nil {
		return mapmaker.Request{}, err
	}
	if o.aspect != "" {
		ratio, err := geo.ParseAspect(o.aspect)
		if err != nil {
			return mapmaker.Request{}, err
		}
		if bbox, err = bbox.WithAspect(ratio); err != nil {
			return mapmaker.Request{}, err
		}
	}
	if err := geo.ValidZoom(o.zoom); err != nil {
		return mapmaker.Request{}, err
	}

	req := mapmaker.Request{
		BBox:        bbox,
		Zoom:        o.zoom,
		Style:       o.style,
		Hillshading: o.hillshading,
		Copyright:   o.copyright,
		ScaleBar:    o.scale,
	}
	if o.background != "" {
		bg, err := compose.ParseColor(o.background)
		if err != nil {
			return req, err
		}
		req.Background = bg
	}
	if o.margin != "" {
		if req.Margins, err = compose.ParseMargins(strings.Fields(o.margin)); err != nil {
			return req, err
		}
	}
	if o.frame != "" {
		if req.Frame, err = compose.ParseFrame(strings.Fields(o.frame)); err != nil {
			return req, err
		}
	}
	if o.title != "" {
		req.Title = compose.NewTitle("")
		if err := compose.ParseText(strings.Fields(o.title), req.Title); err != nil {
			return req, err
		}
	}
	if o.comment != "" {
		req.Comment = compose.NewComment("")
		if err := compose.ParseText(strings.Fields(o.comment), req.Comment); err != nil {
			return req, err
		}
	}
	if o.compass {
		req.Compass = compose.NewCompassRose(compose.SE)
	}

	var points []overlay.Point
	for _, raw := range o.markers {
		p, err := overlay.ParsePoint(raw)
		if err != nil {
			return req, err
		}
		points = append(points, p)
	}
	for _, raw := range o.circles {
		c, err := overlay.ParseCircle(raw)
		if err != nil {
			return req, err
		}
		req.Overlays = append(req.Overlays, c)
	}
	if len(points) > 0 {
		markers := overlay.NewPoints(points...)
		markers.Size, markers.Border = 8, 1.5
		req.Overlays = append(req.Overlays, markers)
	}
	return req, nil
}

// withReport 見積もりを表示し、進捗バーを付ける
func withReport(r *mapmaker.Renderer, req mapmaker.Request, o options) (mapmaker.Request, error) {
	info, err := r.Info(req)
	if err != nil {
		return req, err
	}
	if !o.silent {
		_ = info.Write(os.Stdout)
	}
	if o.silent || o.dryRun || o.gallery {
		return req, nil
	}

	bar := progressbar.Default(int64(info.Tiles), "Downloading Tiles")
	req.Progress = render.ProgressFunc(func(done, total int) {
		_ = bar.Set(done)
	})
	return req, nil
}

// listStyles スタイル名とURLテンプレート。キーが必要なのに未設定なら印を付ける
func listStyles(w io.Writer, cfg *config.Config) {
	for _, s := range cfg.Styles() {
		url := cfg.Services[s]
		note := ""
		if strings.Contains(url, "{api}") && !cfg.HasKey(tilesource.TemplateHost(url)) {
			note = "  (no api key)"
		}
		fmt.Fprintf(w, "%-20s %s%s\n", s, url, note)
	}
}

func report(o options, format string, args ...any) {
	if !o.silent {
		fmt.Printf(format+"\n", args...)
	}
}
