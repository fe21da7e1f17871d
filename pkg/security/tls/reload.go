package tls

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceInterval lets a cert and key written in quick succession
// be loaded as a pair.
const DefaultDebounceInterval = 500 * time.Millisecond

// CertReloader serves a certificate pair and reloads it when either file
// changes.
type CertReloader struct {
	certFile string
	keyFile  string
	debounce time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.RWMutex
	cert     *tls.Certificate
	notAfter time.Time
}

// NewCertReloader loads the pair once and fails if it cannot be used.
func NewCertReloader(certFile, keyFile string, logger *slog.Logger) (*CertReloader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &CertReloader{
		certFile: filepath.Clean(certFile),
		keyFile:  filepath.Clean(keyFile),
		debounce: DefaultDebounceInterval,
		logger:   logger.With("component", "tls.reloader"),
		now:      time.Now,
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads the pair. The current certificate is kept on error.
func (r *CertReloader) Reload() error {
	cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return fmt.Errorf("failed to load certificate %s: %w", r.certFile, err)
	}
	x, err := leaf(&cert)
	if err != nil {
		return err
	}
	now := r.now()
	if err := checkValidity(x, now); err != nil {
		return err
	}
	cert.Leaf = x

	r.mu.Lock()
	r.cert = &cert
	r.notAfter = x.NotAfter
	r.mu.Unlock()

	remaining := x.NotAfter.Sub(now)
	attrs := []any{
		"subject", x.Subject.CommonName,
		"expires_at", x.NotAfter.Format(time.RFC3339),
		"expires_in_days", int(remaining.Hours() / 24),
	}
	if remaining < ExpiryWarning {
		r.logger.Warn("certificate expiring soon", attrs...)
	} else {
		r.logger.Info("certificate loaded", attrs...)
	}
	return nil
}

// GetCertificate implements tls.Config.GetCertificate.
func (r *CertReloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cert, nil
}

// NotAfter returns the expiry of the certificate being served.
func (r *CertReloader) NotAfter() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.notAfter
}

// Watch reloads the pair after changes to either file until ctx is done.
// The parent directories are watched so rename-based renewals are seen.
func (r *CertReloader) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fw.Close()

	for _, dir := range uniqueDirs(r.certFile, r.keyFile) {
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %q: %w", dir, err)
		}
	}

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			name := filepath.Clean(event.Name)
			if name != r.certFile && name != r.keyFile {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			timerMu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(r.debounce, func() {
				if ctx.Err() != nil {
					return
				}
				if err := r.Reload(); err != nil {
					r.logger.Error("certificate reload failed, keeping current certificate", "error", err)
				}
			})
			timerMu.Unlock()

		case err, ok := <-fw.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			r.logger.Error("certificate watcher error", "error", err)
		}
	}
}

func uniqueDirs(paths ...string) []string {
	var dirs []string
	seen := make(map[string]bool)
	for _, p := range paths {
		d := filepath.Dir(p)
		if !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	return dirs
}
