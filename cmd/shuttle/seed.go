package main

import (
	"bufio"
	"context"
	"fmt"
	"iter"
	"math/rand/v2"
	"os"

	"github.com/google/uuid"
	"github.com/poiesic/shuttle/core"
	"github.com/poiesic/shuttle/migrate"
	"github.com/urfave/cli/v2"
)

var titles = []string{
	"History of the printing press",
	"Photosynthesis",
	"List of tallest lighthouses",
	"Baroque architecture",
	"Tidal locking",
	"The Silk Road",
	"Origami mathematics",
	"Volcanic winter",
	"Early computing machines",
	"Coral reef ecology",
	"Byzantine coinage",
	"Plate tectonics",
	"Glass harmonica",
	"Migration of the Arctic tern",
	"Cartography in the Age of Sail",
	"Fermentation",
	"Aurora borealis",
	"Roman aqueducts",
	"Game theory",
	"Bioluminescence",
}

// linesFromFile returns an iterator over lines in a file.
// A read error ends the sequence with that error.
func linesFromFile(filename string) (iter.Seq2[string, error], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	return func(yield func(string, error) bool) {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if !yield(scanner.Text(), nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield("", fmt.Errorf("%s: %w", filename, err))
		}
	}, nil
}

// linesFromSlice returns an iterator over a slice of strings.
func linesFromSlice(lines []string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, line := range lines {
			if !yield(line, nil) {
				return
			}
		}
	}
}

// syntheticSource generates count records, cycling through titles.
type syntheticSource struct {
	titles    []string
	count     int
	dimension int
}

func (s *syntheticSource) Records(ctx context.Context, includeVectors bool) iter.Seq2[*core.Record, error] {
	return func(yield func(*core.Record, error) bool) {
		for i := range s.count {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			id, err := uuid.NewV7()
			if err != nil {
				yield(nil, err)
				return
			}
			record := &core.Record{
				ID: id,
				Properties: map[string]any{
					"title":   s.titles[i%len(s.titles)],
					"ordinal": i,
				},
			}
			if includeVectors && s.dimension > 0 {
				record.Vector = randomVector(s.dimension)
			}
			if !yield(record, nil) {
				return
			}
		}
	}
}

// Count reports how many records the source generates.
func (s *syntheticSource) Count(ctx context.Context) (int, error) {
	return s.count, nil
}

func randomVector(dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = rand.Float32()*2 - 1
	}
	return v
}

func seedCommand(c *cli.Context) error {
	count := c.Int("count")
	if count < 0 {
		return fmt.Errorf("count must not be negative")
	}
	dimension := c.Int("dimension")
	if dimension < 0 {
		return fmt.Errorf("dimension must not be negative")
	}

	lines := linesFromSlice(titles)
	if src := c.String("src"); src != "" {
		var err error
		if lines, err = linesFromFile(src); err != nil {
			return fmt.Errorf("failed to read titles: %w", err)
		}
	}
	var seedTitles []string
	for line, err := range lines {
		if err != nil {
			return fmt.Errorf("failed to read titles: %w", err)
		}
		if line != "" {
			seedTitles = append(seedTitles, line)
		}
	}
	if len(seedTitles) == 0 {
		return fmt.Errorf("no titles to seed from")
	}

	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	dest, err := store.Collection(c.String("collection"))
	if err != nil {
		return err
	}

	config := migrate.DefaultConfig()
	config.BatchSize = c.Int("batch-size")
	source := &syntheticSource{titles: seedTitles, count: count, dimension: dimension}

	m, err := migrate.NewMigrator(source, dest, config, migrate.WithProgressWriter(os.Stderr))
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(c)
	defer cancel()

	return finish(m.Run(ctx))
}
