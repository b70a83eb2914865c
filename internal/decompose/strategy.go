package decompose

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"atelier/internal/layertree"
)

// Strategy is one way of reading a leaf's pixels.
type Strategy struct {
	Name    string
	Extract func(layertree.Node) (image.Image, error)
}

// DefaultStrategies renders the isolated composite first and falls back to
// the stored pixels.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "composite", Extract: layertree.Node.Composite},
		{Name: "raw", Extract: layertree.Node.Raw},
	}
}

// extract tries each strategy in order and returns the first image produced.
func extract(strategies []Strategy, node layertree.Node) (image.Image, string, error) {
	if len(strategies) == 0 {
		return nil, "", errors.New("no extraction strategies configured")
	}
	failures := make([]string, 0, len(strategies))
	for _, s := range strategies {
		img, err := runStrategy(s, node)
		if err == nil {
			return img, s.Name, nil
		}
		failures = append(failures, fmt.Sprintf("%s: %v", s.Name, err))
	}
	return nil, "", errors.New(strings.Join(failures, "; "))
}

func runStrategy(s Strategy, node layertree.Node) (img image.Image, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			img, err = nil, fmt.Errorf("panic: %v", rec)
		}
	}()
	img, err = s.Extract(node)
	if err == nil && img == nil {
		err = layertree.ErrNoPixels
	}
	return img, err
}
