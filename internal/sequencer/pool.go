package sequencer

import (
	"image"
	"sync"
)

// ImagePool recycles canvas buffers between frames and requests. Buffers
// are keyed by their rectangle.
type ImagePool struct {
	mu    sync.RWMutex
	pools map[image.Rectangle]*sync.Pool
}

func NewImagePool() *ImagePool {
	return &ImagePool{pools: make(map[image.Rectangle]*sync.Pool)}
}

// Get returns a buffer for rect. Its contents are undefined.
func (p *ImagePool) Get(rect image.Rectangle) *image.RGBA {
	p.mu.RLock()
	pool, ok := p.pools[rect]
	p.mu.RUnlock()

	if !ok {
		p.mu.Lock()
		pool, ok = p.pools[rect]
		if !ok {
			pool = &sync.Pool{
				New: func() any {
					return image.NewRGBA(rect)
				},
			}
			p.pools[rect] = pool
		}
		p.mu.Unlock()
	}
	return pool.Get().(*image.RGBA)
}

// Put hands img back. Buffers of a size the pool never issued are dropped.
func (p *ImagePool) Put(img *image.RGBA) {
	if img == nil {
		return
	}
	p.mu.RLock()
	pool, ok := p.pools[img.Rect]
	p.mu.RUnlock()
	if ok {
		pool.Put(img)
	}
}
