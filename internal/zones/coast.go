// Package zones builds coastal watch and warning polygons from the mean
// forecast track: time-of-first-intersection per coast segment, buffered,
// dissolved, smoothed, and simplified.
package zones

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/stormtrack/stormtrack/internal/model"
)

// Segment is one coastline piece zones are computed against.
type Segment struct {
	Name  string
	Basin model.Basin
	Line  orb.LineString
}

// CoastSource serves coastline segments per basin. With a file configured it
// loads a GeoJSON FeatureCollection of LineString features (properties:
// "name", "basin") and can hot-reload on change; without one it falls back
// to the built-in simplified coastlines.
type CoastSource struct {
	logger *slog.Logger

	mu       sync.RWMutex
	segments []Segment
	watcher  *fsnotify.Watcher
}

// NewCoastSource builds a CoastSource. path may be empty; watch starts an
// fsnotify reload loop for the file.
func NewCoastSource(path string, watch bool, logger *slog.Logger) (*CoastSource, error) {
	src := &CoastSource{logger: logger}

	if path == "" {
		src.segments = builtinCoastlines()

		return src, nil
	}

	loadErr := src.loadFile(path)
	if loadErr != nil {
		return nil, loadErr
	}

	if watch {
		watchErr := src.watchFile(path)
		if watchErr != nil {
			return nil, watchErr
		}
	}

	return src, nil
}

// SegmentsFor returns the coast segments of one basin.
func (c *CoastSource) SegmentsFor(basin model.Basin) []Segment {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Segment

	for _, segment := range c.segments {
		if segment.Basin == basin {
			out = append(out, segment)
		}
	}

	return out
}

// Close stops the reload watcher if one is running.
func (c *CoastSource) Close() error {
	if c.watcher == nil {
		return nil
	}

	return c.watcher.Close()
}

func (c *CoastSource) loadFile(path string) error {
	data, readErr := os.ReadFile(path)
	if readErr != nil {
		return fmt.Errorf("read coastline file: %w", readErr)
	}

	collection, parseErr := geojson.UnmarshalFeatureCollection(data)
	if parseErr != nil {
		return fmt.Errorf("parse coastline file: %w", parseErr)
	}

	var segments []Segment

	for _, feature := range collection.Features {
		line, ok := feature.Geometry.(orb.LineString)
		if !ok {
			continue
		}

		basin := model.Basin(feature.Properties.MustString("basin", ""))
		if !basin.Valid() {
			continue
		}

		segments = append(segments, Segment{
			Name:  feature.Properties.MustString("name", ""),
			Basin: basin,
			Line:  line,
		})
	}

	if len(segments) == 0 {
		return fmt.Errorf("coastline file %s holds no usable segments", path)
	}

	c.mu.Lock()
	c.segments = segments
	c.mu.Unlock()

	c.logger.Info("loaded coastline segments", "path", path, "segments", len(segments))

	return nil
}

// watchFile reloads the coastline file when it changes. Editors often replace
// the file, so Create events are handled alongside Write.
func (c *CoastSource) watchFile(path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create coastline watcher: %w", err)
	}

	addErr := watcher.Add(path)
	if addErr != nil {
		_ = watcher.Close()

		return fmt.Errorf("watch coastline file: %w", addErr)
	}

	c.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}

				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}

				reloadErr := c.loadFile(path)
				if reloadErr != nil {
					c.logger.Warn("coastline reload failed; keeping previous set",
						"path", path, "error", reloadErr)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}

				c.logger.Warn("coastline watcher error", "error", err)
			}
		}
	}()

	return nil
}

// builtinCoastlines are coarse fallback segments for the basins the upstream
// most commonly tracks. They are only a stand-in until a real coastline file
// is configured.
func builtinCoastlines() []Segment {
	line := func(points ...[2]float64) orb.LineString {
		ls := make(orb.LineString, len(points))
		for i, p := range points {
			ls[i] = orb.Point{p[0], p[1]}
		}

		return ls
	}

	return []Segment{
		{Name: "Philippines", Basin: model.BasinWestPacific,
			Line: line([2]float64{120, 10}, [2]float64{125, 18}, [2]float64{122, 20}, [2]float64{120, 18})},
		{Name: "Japan", Basin: model.BasinWestPacific,
			Line: line([2]float64{130, 30}, [2]float64{140, 35}, [2]float64{142, 40}, [2]float64{140, 42})},
		{Name: "China coast", Basin: model.BasinWestPacific,
			Line: line([2]float64{110, 20}, [2]float64{120, 25}, [2]float64{122, 30})},
		{Name: "Mexico west coast", Basin: model.BasinEastPacific,
			Line: line([2]float64{-115, 20}, [2]float64{-110, 25}, [2]float64{-105, 30})},
		{Name: "US east coast", Basin: model.BasinAtlantic,
			Line: line([2]float64{-80, 25}, [2]float64{-75, 35}, [2]float64{-70, 40})},
		{Name: "Caribbean arc", Basin: model.BasinAtlantic,
			Line: line([2]float64{-85, 15}, [2]float64{-70, 20}, [2]float64{-60, 18})},
		{Name: "Australia northwest", Basin: model.BasinSouthern,
			Line: line([2]float64{113, -22}, [2]float64{120, -18}, [2]float64{128, -15})},
		{Name: "Madagascar east", Basin: model.BasinSouthern,
			Line: line([2]float64{49, -12}, [2]float64{50, -16}, [2]float64{48, -22})},
		{Name: "India east coast", Basin: model.BasinIndianOcean,
			Line: line([2]float64{80, 13}, [2]float64{84, 18}, [2]float64{87, 21})},
		{Name: "Hawaii", Basin: model.BasinCentralPacific,
			Line: line([2]float64{-160, 22}, [2]float64{-157, 21}, [2]float64{-155, 19})},
	}
}
