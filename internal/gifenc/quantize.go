package gifenc

import (
	"sort"
)

// Histogram resolution: 5 bits per channel.
const (
	histBits  = 5
	histShift = 8 - histBits
	histSize  = 1 << (3 * histBits)
)

type rgb struct{ r, g, b uint8 }

type bin struct {
	count      uint32
	r, g, b    uint64 // channel sums
	key        int
	mr, mg, mb uint8 // mean colour
}

type colorBox struct {
	bins  []*bin
	count uint64
}

// quantizer builds a per-frame palette by median cut and maps pixels to it.
// It keeps its buffers between frames and is not safe for concurrent use.
type quantizer struct {
	hist  []bin
	used  []int
	cache []int16 // reduced colour key -> palette index, -1 when unset
}

func newQuantizer() *quantizer {
	return &quantizer{
		hist:  make([]bin, histSize),
		cache: make([]int16, 1<<16),
	}
}

func histKey(r, g, b uint8) int {
	return int(r>>histShift)<<(2*histBits) | int(g>>histShift)<<histBits | int(b>>histShift)
}

// palette samples every stride-th pixel and reduces the samples to at most
// 256 colours. The result is deterministic for a given frame and stride.
func (q *quantizer) palette(pix []byte, rowStride, w, h, sample int) []rgb {
	for _, k := range q.used {
		q.hist[k] = bin{}
	}
	q.used = q.used[:0]

	n := w * h
	for i := 0; i < n; i += sample {
		x, y := i%w, i/w
		p := pix[y*rowStride+4*x:]
		k := histKey(p[0], p[1], p[2])
		b := &q.hist[k]
		if b.count == 0 {
			q.used = append(q.used, k)
		}
		b.count++
		b.r += uint64(p[0])
		b.g += uint64(p[1])
		b.b += uint64(p[2])
	}

	sort.Ints(q.used)
	bins := make([]*bin, len(q.used))
	var total uint64
	for i, k := range q.used {
		b := &q.hist[k]
		b.key = k
		c := uint64(b.count)
		b.mr, b.mg, b.mb = uint8(b.r/c), uint8(b.g/c), uint8(b.b/c)
		bins[i] = b
		total += c
	}

	boxes := []colorBox{{bins: bins, count: total}}
	for len(boxes) < 256 {
		i := splittable(boxes)
		if i < 0 {
			break
		}
		a, b := split(boxes[i])
		boxes[i] = a
		boxes = append(boxes, b)
	}

	out := make([]rgb, len(boxes))
	for i, box := range boxes {
		out[i] = box.mean()
	}
	for i := range q.cache {
		q.cache[i] = -1
	}
	return out
}

// splittable picks the box with the widest channel range weighted by its
// population, or -1 when every box holds a single bin.
func splittable(boxes []colorBox) int {
	best, bestScore := -1, uint64(0)
	for i, b := range boxes {
		if len(b.bins) < 2 {
			continue
		}
		_, span := b.widest()
		score := uint64(span+1) * b.count
		if best < 0 || score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

// widest returns the channel (0 r, 1 g, 2 b) with the largest range.
func (b colorBox) widest() (channel, span int) {
	lo := [3]int{255, 255, 255}
	hi := [3]int{}
	for _, c := range b.bins {
		v := [3]int{int(c.mr), int(c.mg), int(c.mb)}
		for j := range v {
			lo[j] = min(lo[j], v[j])
			hi[j] = max(hi[j], v[j])
		}
	}
	for j := range lo {
		if s := hi[j] - lo[j]; s > span || j == 0 {
			channel, span = j, s
		}
	}
	return channel, span
}

// split divides b at the population median along its widest channel.
func split(b colorBox) (colorBox, colorBox) {
	ch, _ := b.widest()
	val := func(c *bin) uint8 {
		switch ch {
		case 0:
			return c.mr
		case 1:
			return c.mg
		}
		return c.mb
	}
	sort.SliceStable(b.bins, func(i, j int) bool {
		vi, vj := val(b.bins[i]), val(b.bins[j])
		if vi != vj {
			return vi < vj
		}
		return b.bins[i].key < b.bins[j].key
	})

	half := b.count / 2
	var acc uint64
	cut := 1
	for i, c := range b.bins[:len(b.bins)-1] {
		acc += uint64(c.count)
		cut = i + 1
		if acc >= half {
			break
		}
	}
	left := colorBox{bins: b.bins[:cut:cut]}
	right := colorBox{bins: b.bins[cut:]}
	for _, c := range left.bins {
		left.count += uint64(c.count)
	}
	right.count = b.count - left.count
	return left, right
}

// mean is the population weighted average colour of the box.
func (b colorBox) mean() rgb {
	var r, g, bl, n uint64
	for _, c := range b.bins {
		r += c.r
		g += c.g
		bl += c.b
		n += uint64(c.count)
	}
	if n == 0 {
		return rgb{}
	}
	return rgb{uint8((r + n/2) / n), uint8((g + n/2) / n), uint8((bl + n/2) / n)}
}

// cacheKey reduces a colour to 5-6-5 bits for the lookup cache.
func cacheKey(r, g, b uint8) int {
	return int(r>>3)<<11 | int(g>>2)<<5 | int(b>>3)
}

// lookup returns the palette index nearest to the colour, caching the answer
// for every colour sharing its reduced key.
func (q *quantizer) lookup(palette []rgb, r, g, b uint8) byte {
	k := cacheKey(r, g, b)
	if idx := q.cache[k]; idx >= 0 {
		return byte(idx)
	}
	idx := nearest(palette, r, g, b)
	q.cache[k] = int16(idx)
	return byte(idx)
}

func nearest(palette []rgb, r, g, b uint8) int {
	best, bestDist := 0, int(^uint(0)>>1)
	for i, c := range palette {
		dr := int(c.r) - int(r)
		dg := int(c.g) - int(g)
		db := int(c.b) - int(b)
		d := 2*dr*dr + 4*dg*dg + 3*db*db
		if d < bestDist {
			best, bestDist = i, d
			if d == 0 {
				break
			}
		}
	}
	return best
}

// mapIndices assigns every pixel its nearest palette index.
func (q *quantizer) mapIndices(dst, pix []byte, rowStride, w, h int, palette []rgb) {
	for y := 0; y < h; y++ {
		row := pix[y*rowStride:]
		out := dst[y*w : (y+1)*w]
		for x := range out {
			p := row[4*x:]
			out[x] = q.lookup(palette, p[0], p[1], p[2])
		}
	}
}

// ditherIndices maps pixels with Floyd-Steinberg error diffusion. Errors are
// carried in sixteenths.
func (q *quantizer) ditherIndices(dst, pix []byte, rowStride, w, h int, palette []rgb) {
	cur := make([]int32, 3*(w+2))
	next := make([]int32, 3*(w+2))

	for y := 0; y < h; y++ {
		row := pix[y*rowStride:]
		out := dst[y*w : (y+1)*w]
		for x := range out {
			p := row[4*x:]
			e := cur[3*(x+1):]
			r := clamp8(int32(p[0]) + e[0]/16)
			g := clamp8(int32(p[1]) + e[1]/16)
			b := clamp8(int32(p[2]) + e[2]/16)

			idx := q.lookup(palette, r, g, b)
			out[x] = idx
			c := palette[idx]
			errs := [3]int32{int32(r) - int32(c.r), int32(g) - int32(c.g), int32(b) - int32(c.b)}
			for j, d := range errs {
				cur[3*(x+2)+j] += d * 7
				next[3*x+j] += d * 3
				next[3*(x+1)+j] += d * 5
				next[3*(x+2)+j] += d * 1
			}
		}
		cur, next = next, cur
		clear(next)
	}
}

func clamp8(v int32) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
