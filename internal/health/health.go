package health

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/snapetech/strmsync/internal/catalog"
)

// Prober reports the panel account (xtream.Client satisfies it).
type Prober interface {
	Probe(ctx context.Context) (*catalog.AccountInfo, error)
}

// CheckProvider calls the panel auth endpoint. Returns nil if the account is usable, error with message if not.
func CheckProvider(ctx context.Context, p Prober) (*catalog.AccountInfo, error) {
	if p == nil {
		return nil, fmt.Errorf("no provider configured")
	}
	acct, err := p.Probe(ctx)
	if err != nil {
		return acct, fmt.Errorf("provider unreachable: %w", err)
	}
	status := strings.TrimSpace(acct.UserInfo.Status)
	if status != "" && !strings.EqualFold(status, "active") {
		return acct, fmt.Errorf("account status %q", status)
	}
	if exp := acct.UserInfo.ExpDate.Int(); exp > 0 && time.Unix(int64(exp), 0).Before(time.Now()) {
		return acct, fmt.Errorf("account expired %s", time.Unix(int64(exp), 0).Format("2006-01-02"))
	}
	return acct, nil
}

// CheckDir verifies dir exists and accepts new files.
func CheckDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("output dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("output dir %s is not a directory", dir)
	}
	f, err := os.CreateTemp(dir, ".healthz-*")
	if err != nil {
		return fmt.Errorf("output dir not writable: %w", err)
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return nil
}
