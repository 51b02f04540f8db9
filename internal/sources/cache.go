package sources

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Raikerian/go-audio-mixer/pkg/audio"
)

// DefaultClipCacheSize bounds the clip cache when no size is
// configured. Decoded clips are large (a minute of stereo float32 is
// about 23 MB), so the bound counts clips, not bytes.
const DefaultClipCacheSize = 32

// ClipCache holds the LRU cache of decoded clips, keyed by resolved
// file path.
type ClipCache struct {
	*lru.Cache[string, *audio.Clip]
}

// NewClipCache creates a new ClipCache with the given size.
// The size parameter determines the maximum number of clips the cache can hold.
func NewClipCache(size int) (*ClipCache, error) {
	lruCache, err := lru.New[string, *audio.Clip](size)
	if err != nil {
		return nil, err
	}

	return &ClipCache{
		Cache: lruCache,
	}, nil
}

// Add adds a decoded clip to the cache.
func (cc *ClipCache) Add(key string, value *audio.Clip) {
	cc.Cache.Add(key, value)
}

// Get looks up a clip from the cache.
func (cc *ClipCache) Get(key string) (*audio.Clip, bool) {
	return cc.Cache.Get(key)
}

// Purge is used to completely clear the cache.
func (cc *ClipCache) Purge() {
	cc.Cache.Purge()
}

// Len returns the number of cached clips.
func (cc *ClipCache) Len() int {
	return cc.Cache.Len()
}
