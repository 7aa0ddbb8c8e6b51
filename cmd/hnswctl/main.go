// Command hnswctl builds, searches, and dumps HNSW indexes over float32
// vectors read from a simple CSV format (optional leading id column).
package main

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/liliang-cn/hnswcore"
	"github.com/liliang-cn/hnswcore/pkg/distance"
)

var (
	stem           string
	vectorsFile    string
	maxNbConn      int
	efConstruction int
	maxLayer       int
	metric         string
	queryStr       string
	topK           int
	ef             int
	jsonOutput     bool
)

var rootCmd = &cobra.Command{
	Use:   "hnswctl",
	Short: "CLI for building, searching, and dumping HNSW indexes",
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build an index from a vectors file and dump it to --stem",
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := readVectors(vectorsFile)
		if err != nil {
			return fmt.Errorf("reading vectors: %w", err)
		}
		if len(rows) == 0 {
			return fmt.Errorf("no vectors read from %s", vectorsFile)
		}

		d, err := distanceByName(metric)
		if err != nil {
			return err
		}

		cfg := hnswcore.DefaultConfig[float32](d)
		cfg.MaxNbConnection = maxNbConn
		cfg.EfConstruction = efConstruction
		cfg.MaxLayer = maxLayer
		idx := hnswcore.Build(cfg)

		for _, r := range rows {
			idx.Insert(r.vector, r.dataID)
		}

		if err := idx.Dump(stem); err != nil {
			return fmt.Errorf("dump failed: %w", err)
		}
		fmt.Printf("built index with %d points, dumped to %s.hnsw.{graph,data}\n", idx.NbPoint(), stem)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Load --stem and search for --query",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := distanceByName(metric)
		if err != nil {
			return err
		}

		idx, err := hnswcore.Load[float32](stem, d)
		if err != nil {
			return fmt.Errorf("load failed: %w", err)
		}

		query, err := parseVector(queryStr)
		if err != nil {
			return fmt.Errorf("invalid query vector: %w", err)
		}

		results := idx.Search(query, topK, ef, nil)
		if jsonOutput {
			for _, r := range results {
				fmt.Printf(`{"data_id":%d,"distance":%g}`+"\n", r.DataID, r.Distance)
			}
			return nil
		}
		for i, r := range results {
			fmt.Printf("%d. data_id=%d distance=%.6f\n", i+1, r.DataID, r.Distance)
		}
		return nil
	},
}

var loadGraphCmd = &cobra.Command{
	Use:   "load-graph",
	Short: "Load only --stem's topology and print layer statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := hnswcore.LoadGraphOnly[float32](stem)
		if err != nil {
			return fmt.Errorf("load-graph failed: %w", err)
		}
		for k, v := range idx.Stats() {
			fmt.Printf("%s: %d\n", k, v)
		}
		return nil
	},
}

func distanceByName(name string) (distance.Distance[float32], error) {
	switch strings.ToLower(name) {
	case "l1":
		return distance.L1[float32]{}, nil
	case "l2", "euclidean":
		return distance.L2[float32]{}, nil
	case "cosine":
		return distance.Cosine[float32]{}, nil
	case "dot":
		return distance.Dot[float32]{}, nil
	default:
		return nil, fmt.Errorf("unknown metric %q (want l1, l2, cosine, or dot)", name)
	}
}

type vectorRow struct {
	dataID uint64
	vector []float32
}

// readVectors parses rows of comma-separated float32 values. A row may
// optionally start with an integer data id; rows without one get a
// synthetic id derived from a fresh UUID's low 64 bits.
func readVectors(path string) ([]vectorRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	r.FieldsPerRecord = -1

	var rows []vectorRow
	for {
		rec, err := r.Read()
		if err != nil {
			break
		}
		if len(rec) == 0 {
			continue
		}

		var dataID uint64
		fields := rec
		if id, convErr := strconv.ParseUint(strings.TrimSpace(rec[0]), 10, 64); convErr == nil {
			dataID = id
			fields = rec[1:]
		} else {
			dataID = uuidLow64()
		}

		vec := make([]float32, 0, len(fields))
		for _, field := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 32)
			if err != nil {
				return nil, fmt.Errorf("invalid vector component %q: %w", field, err)
			}
			vec = append(vec, float32(v))
		}
		rows = append(rows, vectorRow{dataID: dataID, vector: vec})
	}
	return rows, nil
}

func uuidLow64() uint64 {
	id := uuid.New()
	var v uint64
	for _, b := range id[8:] {
		v = v<<8 | uint64(b)
	}
	return v
}

func parseVector(s string) ([]float32, error) {
	parts := strings.Split(s, ",")
	vec := make([]float32, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, err
		}
		vec = append(vec, float32(v))
	}
	return vec, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&stem, "stem", "index", "dump file stem (writes/reads <stem>.hnsw.graph and .data)")
	rootCmd.PersistentFlags().StringVar(&metric, "metric", "l2", "distance metric: l1, l2, cosine, dot")

	buildCmd.Flags().StringVar(&vectorsFile, "vectors", "", "CSV file of vectors, one per line, optional leading id column")
	buildCmd.Flags().IntVar(&maxNbConn, "m", 10, "max_nb_connection (M)")
	buildCmd.Flags().IntVar(&efConstruction, "ef-construction", 25, "ef_construction")
	buildCmd.Flags().IntVar(&maxLayer, "max-layer", 16, "max_layer")
	buildCmd.MarkFlagRequired("vectors")

	searchCmd.Flags().StringVar(&queryStr, "query", "", "query vector (comma-separated)")
	searchCmd.Flags().IntVar(&topK, "k", 10, "number of results")
	searchCmd.Flags().IntVar(&ef, "ef", 50, "search beam width")
	searchCmd.Flags().BoolVar(&jsonOutput, "json", false, "output newline-delimited JSON")
	searchCmd.MarkFlagRequired("query")

	rootCmd.AddCommand(buildCmd, searchCmd, loadGraphCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
