// Package ggsurface provides a framez.RenderSurface that draws with the
// gogpu/gg software rasterizer.
//
// Frames are painted into a back buffer and copied to a front buffer on
// Present, the way a swap chain would flip. Each presented frame is
// hashed with xxh3; a frame identical to the one on screen is not copied
// again and is counted as skipped.
//
// Basic Usage:
//
//	s := ggsurface.New(640, 480, func(dst surface.Surface, f framez.Frame) {
//		dst.Clear(color.Black)
//		p := surface.NewPath()
//		p.Circle(x, y, 20)
//		dst.Fill(p, surface.DefaultFillStyle().WithColor(color.White))
//	})
//	defer s.Close()
//
//	ctrl, err := framez.New(scene, s)
package ggsurface

import (
	"image"
	"sync"

	"github.com/gogpu/gg/surface"
	"github.com/zeebo/xxh3"
	"github.com/zoobzio/framez"
)

// Painter draws one frame onto dst. It runs on the render thread.
type Painter func(dst surface.Surface, frame framez.Frame)

// Surface is a double-buffered software render surface.
//
// Draw, Present and Flush are called by the render thread. Front, Digest
// and Stats may be called from any goroutine.
type Surface struct {
	paint Painter

	mu       sync.Mutex
	back     *surface.ImageSurface
	front    *image.RGBA
	digest   uint64
	frame    uint64 // number of the frame on the front buffer
	presents uint64
	skipped  uint64
	closed   bool
}

var _ framez.RenderSurface = (*Surface)(nil)

// New creates a width×height surface. Sizes below 1 are clamped to 1.
// A nil paint leaves the back buffer untouched.
func New(width, height int, paint Painter) *Surface {
	back := surface.NewImageSurface(width, height)
	return &Surface{
		paint: paint,
		back:  back,
		front: image.NewRGBA(image.Rect(0, 0, back.Width(), back.Height())),
	}
}

// Width returns the surface width in pixels.
func (s *Surface) Width() int { return s.front.Rect.Dx() }

// Height returns the surface height in pixels.
func (s *Surface) Height() int { return s.front.Rect.Dy() }

// Draw paints frame into the back buffer.
func (s *Surface) Draw(frame framez.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return framez.ErrSurfaceLost
	}
	if s.paint != nil {
		s.paint(s.back, frame)
	}
	s.frame = frame.Number
	return nil
}

// Present copies the back buffer to the front buffer unless it is
// unchanged since the last present.
func (s *Surface) Present() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return framez.ErrSurfaceLost
	}

	pix := s.back.Image().Pix
	sum := xxh3.Hash(pix)
	if s.presents > 0 && sum == s.digest {
		s.skipped++
		return nil
	}
	copy(s.front.Pix, pix)
	s.digest = sum
	s.presents++
	return nil
}

// Flush completes pending drawing on the back buffer.
func (s *Surface) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	return s.back.Flush()
}

// Close releases the back buffer. Later Draw and Present calls return
// framez.ErrSurfaceLost. Close is idempotent.
func (s *Surface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.back.Close()
}

// Front returns a copy of the last presented image.
func (s *Surface) Front() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	img := image.NewRGBA(s.front.Rect)
	copy(img.Pix, s.front.Pix)
	return img
}

// Digest returns the xxh3 hash of the front buffer, 0 before the first
// present.
func (s *Surface) Digest() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.digest
}

// Stats reports how many frames were copied to the front buffer and how
// many were skipped as unchanged.
func (s *Surface) Stats() (presented, skipped uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presents, s.skipped
}
