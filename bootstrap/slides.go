package bootstrap

import (
	"context"
	"fmt"
	"sort"

	"github.com/MrEthical07/wanderauth/docstore"
)

// SlidesCollection holds the hero carousel configuration.
const SlidesCollection = "hero_slides"

// Slide is one hero carousel entry. Lower Order is shown first.
type Slide struct {
	Order int    `json:"order"`
	Image string `json:"image"`
	Title string `json:"title,omitempty"`
}

// SlideSource yields the slide whose image gates readiness.
type SlideSource interface {
	FirstSlide(ctx context.Context) (Slide, bool, error)
}

// DocSlides reads slides from the document store.
type DocSlides struct {
	docs *docstore.Store
}

func NewDocSlides(docs *docstore.Store) *DocSlides {
	return &DocSlides{docs: docs}
}

// FirstSlide returns the slide with the lowest order. Undecodable entries
// are skipped.
func (s *DocSlides) FirstSlide(ctx context.Context) (Slide, bool, error) {
	snaps, err := s.docs.List(ctx, SlidesCollection)
	if err != nil {
		return Slide{}, false, err
	}

	slides := make([]Slide, 0, len(snaps))
	for _, snap := range snaps {
		var sl Slide
		if err := snap.Decode(&sl); err != nil || sl.Image == "" {
			continue
		}
		slides = append(slides, sl)
	}
	if len(slides) == 0 {
		return Slide{}, false, nil
	}

	sort.SliceStable(slides, func(i, j int) bool { return slides[i].Order < slides[j].Order })
	return slides[0], true, nil
}

// Put writes a slide under key.
func (s *DocSlides) Put(ctx context.Context, key string, sl Slide) error {
	if err := s.docs.Write(ctx, SlidesCollection+"/"+key, sl); err != nil {
		return fmt.Errorf("write slide %s: %w", key, err)
	}
	return nil
}
