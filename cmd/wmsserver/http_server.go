package main

import (
	"embed"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/redirect"
	"github.com/gofiber/template/html/v2"
)

//go:embed template/*
var templates embed.FS

//go:embed static/*
var embedDirStatic embed.FS

func NewHttp(app *App) *fiber.App {
	engine := html.NewFileSystem(http.FS(templates), ".html")
	engine.Delims("[[", "]]")

	f := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		EnablePrintRoutes:     false,
		Views:                 engine,
	})

	f.Use(logger.New(logger.Config{
		Format: "[${ip}]:${port} ${status} - ${method} ${path} ${queryParams}\n",
	}))

	f.Use(cors.New(cors.Config{
		AllowOrigins: "*",
	}))

	f.Use(redirect.New(redirect.Config{
		Rules: map[string]string{
			"/map": "/static/index.html",
		},
		StatusCode: 302,
	}))

	f.Get("/", getIndexHandler(app))
	f.Get("/sources", getSourcesHandler(app))
	f.Get("/tiles/:key/:zoom/:x/:y", getTileHandler(app))
	f.Get("/identify/:key", getIdentifyHandler(app))

	f.Use("/static", filesystem.New(filesystem.Config{
		Root:       http.FS(embedDirStatic),
		PathPrefix: "static",
	}))

	return f
}

func getIndexHandler(app *App) func(c *fiber.Ctx) error {
	addrs := getLocalAddr()

	return func(c *fiber.Ctx) error {
		_, port, err := net.SplitHostPort(app.addr)

		if err != nil {
			return err
		}

		d := fiber.Map{
			"port":    port,
			"ips":     addrs,
			"sources": app.getSources(),
			"version": getVersion(),
		}

		return c.Render("template/index", d, "template/_header")
	}
}

func getSourcesHandler(app *App) func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		return c.JSON(app.getSources())
	}
}

func (app *App) getSources() []map[string]any {
	r := make([]map[string]any, 0)

	app.sources.All(func(s *ProxySource) bool {
		sd := make(map[string]any)
		sd["url"] = "/tiles/" + url.QueryEscape(s.GetKey()) + "/{z}/{x}/{y}"
		sd["min_zoom"] = s.GetMinZoom()
		sd["max_zoom"] = s.GetMaxZoom()
		sd["name"] = s.GetName()
		sd["attribution"] = s.GetAttribution()
		r = append(r, sd)

		return true
	})

	return r
}

func getTileHandler(app *App) func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		var err error
		var zoom, x, y int

		key, _ := url.QueryUnescape(c.Params("key"))

		if zoom, err = c.ParamsInt("zoom"); err != nil {
			return fmt.Errorf("error: invalid zoom value")
		}

		if x, err = c.ParamsInt("x"); err != nil {
			return fmt.Errorf("error: invalid x value")
		}

		if y, err = c.ParamsInt("y"); err != nil {
			return fmt.Errorf("error: invalid y value")
		}

		source, ok := app.sources.Get(key)

		if !ok {
			return c.Status(fiber.StatusNotFound).SendString(fmt.Sprintf("source %s is not found", key))
		}

		data, err := source.GetTile(c.Context(), zoom, x, y)

		if err != nil {
			app.logger.Error("error getting tile", "error", err)
			return err
		}

		if data != nil {
			c.Set("Content-Type", source.GetContentType())
			_, err := c.Write(data)
			if err != nil {
				app.logger.Error("error writing response", "error", err)
			}

			return err
		}

		return c.Status(fiber.StatusNotFound).SendString("not found")
	}
}

func getIdentifyHandler(app *App) func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		key, _ := url.QueryUnescape(c.Params("key"))

		source, ok := app.sources.Get(key)

		if !ok {
			return c.Status(fiber.StatusNotFound).SendString(fmt.Sprintf("source %s is not found", key))
		}

		q := IdentifyQuery{
			Bbox:   c.Query("bbox"),
			SRS:    c.Query("srs"),
			Width:  atoi(c.Query("width")),
			Height: atoi(c.Query("height")),
			X:      atoi(c.Query("x")),
			Y:      atoi(c.Query("y")),
		}

		if q.Bbox == "" || q.Width == 0 || q.Height == 0 {
			return c.Status(fiber.StatusBadRequest).SendString("bbox, width and height are required")
		}

		c.Set("Content-Type", "text/html; charset=utf-8")

		return c.SendString(source.Identify(c.Context(), q))
	}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)

	return n
}
