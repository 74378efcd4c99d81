package synth

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"

	"github.com/Horlarhyinka/ai-classroom/speech"
)

// Stats summarizes cache behavior for display and logging.
type Stats struct {
	Entries int
	Bytes   int64
	Hits    int64
	Misses  int64
}

// HumanBytes renders the cache size for human eyes.
func (s Stats) HumanBytes() string {
	return humanize.Bytes(uint64(s.Bytes)) //nolint:gosec
}

// Cache stores synthesized audio per content-addressed key, in memory and
// optionally on disk so repeated sessions over the same material do not
// resynthesize.
type Cache struct {
	dir string // empty disables the disk layer

	mu     sync.Mutex
	mem    map[string]*speech.Audio
	bytes  int64
	hits   int64
	misses int64
}

// NewCache creates a cache rooted at dir. An empty dir keeps audio in memory
// only.
func NewCache(dir string) *Cache {
	return &Cache{dir: dir, mem: make(map[string]*speech.Audio)}
}

// Get returns the cached audio for key, marking it as cache-served.
func (c *Cache) Get(key string) (*speech.Audio, bool) {
	c.mu.Lock()
	if audio, ok := c.mem[key]; ok {
		c.hits++
		c.mu.Unlock()
		return cachedCopy(audio), true
	}
	c.mu.Unlock()

	if c.dir != "" {
		if data, err := os.ReadFile(c.path(key)); err == nil && len(data) > 0 {
			audio := &speech.Audio{Data: data}
			c.mu.Lock()
			c.mem[key] = audio
			c.bytes += int64(len(data))
			c.hits++
			c.mu.Unlock()
			return cachedCopy(audio), true
		}
	}

	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
	return nil, false
}

// Put stores the audio under key.
func (c *Cache) Put(key string, audio *speech.Audio) {
	if audio == nil || len(audio.Data) == 0 {
		return
	}

	c.mu.Lock()
	if _, exists := c.mem[key]; !exists {
		c.mem[key] = audio
		c.bytes += int64(len(audio.Data))
	}
	total := c.bytes
	c.mu.Unlock()

	if c.dir != "" {
		if err := os.MkdirAll(c.dir, 0o755); err != nil {
			log.Warn("synth: cannot create cache dir", "dir", c.dir, "err", err)
			return
		}
		if err := os.WriteFile(c.path(key), audio.Data, 0o644); err != nil {
			log.Warn("synth: cache write failed", "key", key, "err", err)
			return
		}
	}
	log.Debug("synth: cached audio", "key", key[:min(8, len(key))], "size", humanize.Bytes(uint64(len(audio.Data))), "total", humanize.Bytes(uint64(total))) //nolint:gosec
}

// Stats returns a snapshot of cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Entries: len(c.mem), Bytes: c.bytes, Hits: c.hits, Misses: c.misses}
}

// DiskStats reports what is on disk, independent of the in-memory layer.
func (c *Cache) DiskStats() (Stats, error) {
	var stats Stats
	if c.dir == "" {
		return stats, nil
	}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return stats, nil
		}
		return stats, err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".mp3" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		stats.Entries++
		stats.Bytes += info.Size()
	}
	return stats, nil
}

// Purge drops the in-memory layer and removes cached files on disk.
func (c *Cache) Purge() error {
	c.mu.Lock()
	c.mem = make(map[string]*speech.Audio)
	c.bytes = 0
	c.mu.Unlock()

	if c.dir == "" {
		return nil
	}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".mp3" {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key+".mp3")
}

// cachedCopy hands out the shared handle flagged as cache-served.
func cachedCopy(audio *speech.Audio) *speech.Audio {
	copied := *audio
	copied.Cached = true
	return &copied
}
