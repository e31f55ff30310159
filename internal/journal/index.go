package journal

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

// Hit is one search match over removed messages.
type Hit struct {
	Ts         int64
	Role       string
	CondenseID string
	Score      float64
}

// Index provides BM25 keyword search over messages recorded in journals.
type Index struct {
	index bleve.Index
	path  string
}

// OpenIndex creates or opens the index at path.
// A corrupted index is deleted and recreated; journals can always rebuild it.
func OpenIndex(path string) (*Index, error) {
	index, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		index, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create journal index: %w", err)
		}
		log.Println("📚 journal index created")
	} else if err != nil {
		log.Printf("⚠️  journal index appears corrupted (error: %v), recreating...", err)
		if index != nil {
			index.Close()
		}
		if err := os.RemoveAll(path); err != nil {
			return nil, fmt.Errorf("failed to remove corrupted journal index: %w", err)
		}
		index, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to recreate journal index: %w", err)
		}
		log.Println("✅ journal index recreated")
	}
	return &Index{index: index, path: path}, nil
}

// NewMemIndex returns an index that lives only in memory.
func NewMemIndex() (*Index, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create journal index: %w", err)
	}
	return &Index{index: index}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	msgMapping := bleve.NewDocumentMapping()

	for _, name := range []string{"task_id", "role", "condense_id"} {
		field := bleve.NewTextFieldMapping()
		field.Analyzer = keyword.Name
		field.Store = true
		field.Index = true
		msgMapping.AddFieldMappingsAt(name, field)
	}

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = standard.Name
	textField.Store = false
	textField.Index = true
	msgMapping.AddFieldMappingsAt("text", textField)

	indexMapping.DefaultMapping = msgMapping
	return indexMapping
}

func docID(taskID string, ts int64) string {
	return taskID + "/" + strconv.FormatInt(ts, 10)
}

// IndexEntry indexes every removed message of e. Re-indexing an entry is harmless.
func (x *Index) IndexEntry(taskID string, e Entry) error {
	batch := x.index.NewBatch()
	for _, m := range e.Removed {
		doc := map[string]interface{}{
			"task_id":     taskID,
			"role":        string(m.Role),
			"condense_id": e.CondenseID,
			"text":        m.Content,
		}
		if err := batch.Index(docID(taskID, m.Ts), doc); err != nil {
			return fmt.Errorf("failed to index message %d: %w", m.Ts, err)
		}
	}
	return x.index.Batch(batch)
}

// IndexJournal indexes every entry of j.
func (x *Index) IndexJournal(taskID string, j Journal) error {
	for _, e := range j.Entries {
		if err := x.IndexEntry(taskID, e); err != nil {
			return err
		}
	}
	return nil
}

// Search returns up to k removed messages of a task matching query, best first.
func (x *Index) Search(taskID, query string, k int) ([]Hit, error) {
	textQuery := bleve.NewMatchQuery(query)
	textQuery.SetField("text")

	taskQuery := bleve.NewTermQuery(taskID)
	taskQuery.SetField("task_id")

	req := bleve.NewSearchRequest(bleve.NewConjunctionQuery(textQuery, taskQuery))
	req.Size = k
	req.Fields = []string{"role", "condense_id"}

	res, err := x.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("journal search failed: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		sep := strings.LastIndex(h.ID, "/")
		ts, err := strconv.ParseInt(h.ID[sep+1:], 10, 64)
		if err != nil {
			continue
		}
		hit := Hit{Ts: ts, Score: h.Score}
		if role, ok := h.Fields["role"].(string); ok {
			hit.Role = role
		}
		if id, ok := h.Fields["condense_id"].(string); ok {
			hit.CondenseID = id
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Close closes the index.
func (x *Index) Close() error {
	return x.index.Close()
}
