package rules

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Loader reads a YAML rule-set file and watches it for changes. Tables
// omitted from the file keep their compiled-in defaults. Every load
// validates the merged set; a failed reload keeps the previous one.
type Loader struct {
	path     string
	mu       sync.RWMutex
	current  *domain.RuleSet
	onChange []func(*domain.RuleSet)
	watcher  *fsnotify.Watcher
}

// ruleFile mirrors RuleSet with optional fields so an omitted table can be
// told apart from an explicitly empty one.
type ruleFile struct {
	HighRiskCountries       []string               `yaml:"high_risk_countries"`
	RiskyMerchantCategories []string               `yaml:"risky_merchant_categories"`
	KYCTierScores           map[string]int         `yaml:"kyc_tier_scores"`
	KYCDefaultScore         *int                   `yaml:"kyc_default_score"`
	Categories              []domain.CategoryRange `yaml:"categories"`
	FallbackCategory        string                 `yaml:"fallback_category"`
}

// NewLoader creates a Loader and performs the initial load.
func NewLoader(path string) (*Loader, error) {
	l := &Loader{path: path}
	rs, err := l.load()
	if err != nil {
		return nil, err
	}
	l.current = rs
	return l, nil
}

// RuleSet returns the current (latest) rule set.
func (l *Loader) RuleSet() *domain.RuleSet {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// Path returns the rules file path.
func (l *Loader) Path() string {
	return l.path
}

// OnChange registers a callback invoked whenever the rule set reloads.
func (l *Loader) OnChange(fn func(*domain.RuleSet)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Watch starts a background goroutine that hot-reloads the rule set on file
// changes. Call the returned stop function to clean up.
func (l *Loader) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("rules watcher: %w", err)
	}
	if err := w.Add(l.path); err != nil {
		w.Close()
		return nil, fmt.Errorf("rules watcher add %s: %w", l.path, err)
	}
	l.watcher = w

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
					rs, err := l.load()
					if err != nil {
						// Keep serving the old rule set.
						slog.Warn("rules reload failed",
							"path", l.path,
							"error", err,
						)
						continue
					}
					l.swap(rs)
					slog.Info("rules reloaded",
						"path", l.path,
						"categories", len(rs.Categories),
					)
				}
			case <-w.Errors:
				// Ignore watcher errors.
			case <-done:
				return
			}
		}
	}()

	return func() { close(done) }, nil
}

// Reload forces an immediate re-read of the rules file.
func (l *Loader) Reload() (*domain.RuleSet, error) {
	rs, err := l.load()
	if err != nil {
		return nil, err
	}
	l.swap(rs)
	return rs, nil
}

func (l *Loader) swap(rs *domain.RuleSet) {
	l.mu.Lock()
	l.current = rs
	callbacks := make([]func(*domain.RuleSet), len(l.onChange))
	copy(callbacks, l.onChange)
	l.mu.Unlock()
	for _, fn := range callbacks {
		fn(rs)
	}
}

func (l *Loader) load() (*domain.RuleSet, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", l.path, err)
	}

	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse rules %s: %w", l.path, err)
	}

	// Start from the defaults and override only what the file sets.
	rs := domain.DefaultRuleSet()
	if file.HighRiskCountries != nil {
		rs.HighRiskCountries = file.HighRiskCountries
	}
	if file.RiskyMerchantCategories != nil {
		rs.RiskyMerchantCategories = file.RiskyMerchantCategories
	}
	if file.KYCTierScores != nil {
		rs.KYCTierScores = file.KYCTierScores
	}
	if file.KYCDefaultScore != nil {
		rs.KYCDefaultScore = *file.KYCDefaultScore
	}
	if file.Categories != nil {
		rs.Categories = file.Categories
	}
	if file.FallbackCategory != "" {
		rs.FallbackCategory = file.FallbackCategory
	}

	if err := rs.Validate(); err != nil {
		return nil, fmt.Errorf("rules %s: %w", l.path, err)
	}
	return rs, nil
}
