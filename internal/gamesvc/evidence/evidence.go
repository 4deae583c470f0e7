package evidence

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var (
	ErrUnsupported = errors.New("unsupported evidence file type, allowed: mp4, mov")
	ErrTooLarge    = errors.New("evidence file too large")
	ErrBadRef      = errors.New("invalid evidence reference")
)

var allowed = map[string]bool{
	".mp4": true,
	".mov": true,
}

// DiskStore keeps uploaded kill videos in one folder. A reference is the bare file name.
type DiskStore struct {
	dir     string
	newName func() string
}

func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create evidence folder %s: %w", dir, err)
	}
	return &DiskStore{
		dir:     dir,
		newName: func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
	}, nil
}

func (d *DiskStore) Dir() string { return d.dir }

// Save writes r under a fresh name that keeps the extension of filename. At most limit bytes
// are accepted; a larger upload is removed again and ErrTooLarge returned.
func (d *DiskStore) Save(filename string, r io.Reader, limit int64) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowed[ext] {
		return "", ErrUnsupported
	}

	ref := "kill_" + d.newName() + ext
	path := filepath.Join(d.dir, ref)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("create evidence file: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(r, limit+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > limit {
		err = ErrTooLarge
	}
	if err != nil {
		os.Remove(path)
		if errors.Is(err, ErrTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("write evidence file: %w", err)
	}
	return ref, nil
}

// Path resolves a reference to a file inside the store.
func (d *DiskStore) Path(ref string) (string, error) {
	if ref == "" || ref != filepath.Base(ref) || strings.HasPrefix(ref, ".") {
		return "", ErrBadRef
	}
	return filepath.Join(d.dir, ref), nil
}

func (d *DiskStore) Remove(ref string) error {
	path, err := d.Path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Purge deletes everything in the store folder but keeps the folder.
func (d *DiskStore) Purge() error {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return fmt.Errorf("read evidence folder: %w", err)
	}
	var errs []error
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(d.dir, e.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	log.Infof("evidence purge removed %d entries from %s", len(entries)-len(errs), d.dir)
	return errors.Join(errs...)
}
