package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"github.com/Bobfrat/gowms/pkg/cache"
	"github.com/Bobfrat/gowms/pkg/mapper"
	"github.com/Bobfrat/gowms/pkg/model"
	"github.com/Bobfrat/gowms/pkg/wms"
)

type App struct {
	url       string
	params    wms.Params
	uppercase bool
	bound     orb.Bound
	zmin      int
	zmax      int
	out       string
	fetch     model.Fetcher
	logger    *slog.Logger
}

func (app *App) GetType() string {
	switch app.params["format"] {
	case "image/jpeg":
		return "jpg"
	default:
		return "png"
	}
}

func (app *App) Run() error {
	_ = os.Remove(app.out)

	db, err := cache.Open(app.out, app.out, app.GetType())

	if err != nil {
		return err
	}

	defer db.Close()

	total := 0
	ctx := context.Background()

	for z := app.zmin; z <= app.zmax; z++ {
		tiles := mapper.Covering(app.bound, maptile.Zoom(z))

		fmt.Printf("zoom %d: %d tiles\n", z, len(tiles))

		for _, tile := range tiles {
			p := app.params.Clone()
			p.MergeBounds(tile.Bound(), mapper.TileSize, mapper.TileSize, mapper.EPSG3857, p.Version())

			u := (&wms.Request{BaseURL: app.url, Params: p, Uppercase: app.uppercase}).URL()

			data, err := app.fetch.Get(ctx, u)

			if err != nil {
				return err
			}

			if err := db.Put(z, int(tile.X), int(tile.Y), data); err != nil {
				return err
			}

			total += 1
		}
	}

	meta := map[string]string{
		"minzoom": fmt.Sprintf("%d", app.zmin),
		"maxzoom": fmt.Sprintf("%d", app.zmax),
	}

	if err := db.PutMeta(meta); err != nil {
		return err
	}

	fmt.Printf("zoom: %d - %d\n", app.zmin, app.zmax)
	fmt.Printf("total tiles: %d\n", total)

	return nil
}

func parseBbox(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")

	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("invalid bbox: %s", s)
	}

	v := make([]float64, 4)

	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("invalid bbox value: %s", p)
		}
		v[i] = f
	}

	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}

func main() {
	var wmsURL = flag.String("url", "", "WMS endpoint url")
	var layers = flag.String("layers", "", "comma-separated layer names")
	var version = flag.String("version", "1.1.1", "WMS version")
	var format = flag.String("format", "image/jpeg", "image format")
	var transparent = flag.Bool("transparent", false, "request transparent images")
	var uppercase = flag.Bool("uppercase", false, "upper-case parameter keys")
	var bbox = flag.String("bbox", "", "minlon,minlat,maxlon,maxlat")
	var zmin = flag.Int("zmin", 0, "min zoom")
	var zmax = flag.Int("zmax", 0, "max zoom")

	flag.Parse()

	h := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	slog.SetDefault(slog.New(h))

	if len(flag.Args()) != 1 {
		fmt.Println("no file name")
		return
	}

	if *wmsURL == "" || *layers == "" || *bbox == "" {
		fmt.Println("you need to specify -url, -layers and -bbox")
		return
	}

	bound, err := parseBbox(*bbox)

	if err != nil {
		fmt.Printf("error: %s\n", err.Error())
		return
	}

	params := wms.DefaultParams()
	params["layers"] = *layers
	params["version"] = *version
	params["format"] = *format
	params["transparent"] = strconv.FormatBool(*transparent)

	app := &App{
		url:       *wmsURL,
		params:    params,
		uppercase: *uppercase,
		bound:     bound,
		zmin:      *zmin,
		zmax:      *zmax,
		out:       flag.Arg(0) + ".mbtiles",
		fetch:     model.NewHTTPFetcher(),
		logger:    slog.Default(),
	}

	if err := app.Run(); err != nil {
		fmt.Printf("error: %s\n", err.Error())
	}
}
