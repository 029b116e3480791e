package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/zhouzirui/visa-interview/backend/internal/model/interview"
)

//go:embed visa_catalog.yaml
var defaultCatalog []byte

type document struct {
	Categories []interview.CategoryInfo `yaml:"categories"`
	Questions  []*Question             `yaml:"questions"`
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
	defaultErr  error
)

// Default returns the embedded catalog, parsed and validated once.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCat, defaultErr = Load(defaultCatalog)
	})
	return defaultCat, defaultErr
}

// LoadFile reads and validates a catalog from disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	cat, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return cat, nil
}

// Load parses a YAML catalog and validates it. Any structural problem,
// reachability gap or empty candidate set fails the load.
func Load(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	cat, err := build(doc)
	if err != nil {
		return nil, err
	}

	report, err := cat.replay()
	if err != nil {
		return nil, err
	}
	cat.report = report
	return cat, nil
}

func build(doc document) (*Catalog, error) {
	cat := &Catalog{
		byCode: make(map[interview.Category]interview.CategoryInfo, len(doc.Categories)),
		byKey:  make(map[interview.QuestionKey]*Question, len(doc.Questions)),
	}

	var errs []error
	codes := make([]interview.Category, 0, len(doc.Categories))
	for _, info := range doc.Categories {
		if info.Code == "" {
			errs = append(errs, errors.New("category with empty code"))
			continue
		}
		if _, dup := cat.byCode[info.Code]; dup {
			errs = append(errs, fmt.Errorf("category %s defined twice", info.Code))
			continue
		}
		cat.byCode[info.Code] = info
		cat.categories = append(cat.categories, info)
		codes = append(codes, info.Code)
	}
	cat.universe = interview.NewCategorySet(codes...)
	if cat.universe.IsEmpty() {
		errs = append(errs, errors.New("catalog defines no categories"))
	}

	for _, q := range doc.Questions {
		if q == nil {
			errs = append(errs, errors.New("empty question entry"))
			continue
		}
		if !q.Key.Valid() {
			errs = append(errs, fmt.Errorf("question %q: %w", q.Key, interview.ErrUnknownQuestion))
			continue
		}
		if _, dup := cat.byKey[q.Key]; dup {
			errs = append(errs, fmt.Errorf("question %s defined twice", q.Key))
			continue
		}
		if q.Type == "" {
			q.Type = interview.QuestionTypeSingleChoice
		}
		q.universe = cat.universe
		for i := range q.Options {
			opt := &q.Options[i]
			opt.allowSet = interview.NewCategorySet(opt.Allow...)
			opt.excludeSet = interview.NewCategorySet(opt.Exclude...)
		}
		cat.byKey[q.Key] = q
		cat.questions = append(cat.questions, q)
	}

	for _, key := range interview.AllQuestionKeys() {
		if _, ok := cat.byKey[key]; !ok {
			errs = append(errs, fmt.Errorf("question %s is not defined", key))
		}
	}

	for _, q := range cat.questions {
		errs = append(errs, cat.checkQuestion(q)...)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return cat, nil
}
