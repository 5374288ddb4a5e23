package clusters

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	Clusters []struct {
		Name     string   `yaml:"name"`
		Keywords []string `yaml:"keywords"`
	} `yaml:"clusters"`
}

// Loader reads the cluster set from a YAML file and can watch it for
// changes, swapping the active Tagger without a restart.
type Loader struct {
	path     string
	mu       sync.RWMutex
	current  *Tagger
	onChange []func(*Tagger)
}

// NewLoader creates a Loader and performs the initial load.
func NewLoader(path string) (*Loader, error) {
	l := &Loader{path: path}
	t, err := l.load()
	if err != nil {
		return nil, err
	}
	l.current = t
	return l, nil
}

// Tag matches text against the current label set.
func (l *Loader) Tag(text string) (string, bool) {
	return l.Tagger().Tag(text)
}

// Tagger returns the currently active Tagger.
func (l *Loader) Tagger() *Tagger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers a callback invoked whenever the label set reloads.
func (l *Loader) OnChange(fn func(*Tagger)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Watch starts a background goroutine that hot-swaps the label set when the
// file changes. A broken edit keeps the previous set active. Call the
// returned stop function to clean up.
func (l *Loader) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("clusters watcher: %w", err)
	}
	if err := w.Add(l.path); err != nil {
		w.Close()
		return nil, fmt.Errorf("clusters watcher add %s: %w", l.path, err)
	}

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					if _, err := l.Reload(); err != nil {
						slog.Warn("Cluster config reload failed, keeping previous set",
							"path", l.path,
							"error", err)
					}
				}
			case <-w.Errors:
			case <-done:
				return
			}
		}
	}()

	return func() { close(done) }, nil
}

// Reload forces an immediate re-read of the cluster file.
func (l *Loader) Reload() (*Tagger, error) {
	t, err := l.load()
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = t
	callbacks := make([]func(*Tagger), len(l.onChange))
	copy(callbacks, l.onChange)
	l.mu.Unlock()
	for _, fn := range callbacks {
		fn(t)
	}
	slog.Info("Cluster set loaded", "path", l.path, "clusters", t.Names())
	return t, nil
}

func (l *Loader) load() (*Tagger, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read clusters %s: %w", l.path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse clusters %s: %w", l.path, err)
	}
	labels := make([]Label, len(cfg.Clusters))
	for i, c := range cfg.Clusters {
		labels[i] = Label{Name: c.Name, Keywords: c.Keywords}
	}
	t, err := NewTagger(labels)
	if err != nil {
		return nil, fmt.Errorf("clusters %s: %w", l.path, err)
	}
	return t, nil
}
