package project

import (
	"fmt"

	"github.com/arthur-debert/nanotags/nanotags/attributes"
	"github.com/arthur-debert/nanotags/nanotags/filter"
	"github.com/arthur-debert/nanotags/nanotags/store"
	"github.com/arthur-debert/nanotags/types"
)

var scanCollections = []string{types.CollectionCurrent, types.CollectionInitial}

// AddScan adds a scan to the current and initial collections. Tags missing
// from values receive their default value, if any.
func (p *Project) AddScan(path string, values map[string]interface{}) error {
	return p.Write(func(s store.Session) error {
		as := attributes.Wrap(s)
		for _, c := range scanCollections {
			doc := make(map[string]interface{}, len(values)+1)
			for name, v := range values {
				doc[name] = v
			}
			for _, field := range as.GetFields(c) {
				if _, ok := doc[field.Name]; ok {
					continue
				}
				if field.Attributes != nil && field.Attributes.DefaultValue != nil {
					doc[field.Name] = *field.Attributes.DefaultValue
				}
			}
			doc[types.TagFileName] = path
			if err := as.AddDocument(c, doc); err != nil {
				return fmt.Errorf("scan %q: %w", path, err)
			}
		}
		p.logger.Debug("scan added", "path", path)
		return nil
	})
}

// AddTag declares a user tag in both scan collections and gives existing
// scans its default value
func (p *Project) AddTag(name string, fieldType types.FieldType, description string, attrs types.FieldAttributes) error {
	return p.Write(func(s store.Session) error {
		as := attributes.Wrap(s)
		specs := make([]attributes.FieldSpec, 0, len(scanCollections))
		for _, c := range scanCollections {
			specs = append(specs, attributes.FieldSpec{
				Collection: c, Name: name, Type: fieldType, Description: description, Attributes: attrs,
			})
		}
		if err := as.AddFields(specs); err != nil {
			return err
		}
		if attrs.DefaultValue == nil {
			return nil
		}
		for _, c := range scanCollections {
			keys, err := as.DocumentKeys(c)
			if err != nil {
				return err
			}
			for _, key := range keys {
				if err := as.SetValue(c, key, name, *attrs.DefaultValue); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// RemoveTag removes a user tag from both scan collections
func (p *Project) RemoveTag(name string) error {
	return p.Write(func(s store.Session) error {
		as := attributes.Wrap(s)
		f := as.GetField(types.CollectionCurrent, name)
		if f != nil && f.Attributes != nil && f.Attributes.Origin == types.OriginBuiltin {
			return fmt.Errorf("%w: %q is a builtin tag", types.ErrInvalidName, name)
		}
		for _, c := range scanCollections {
			if err := as.RemoveField(c, name); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetTagAttributes replaces the attributes of a tag in both scan
// collections. The origin of the tag is kept.
func (p *Project) SetTagAttributes(name string, attrs types.FieldAttributes) error {
	return p.Write(func(s store.Session) error {
		as := attributes.Wrap(s)
		current := as.GetField(types.CollectionCurrent, name)
		if current == nil {
			return fmt.Errorf("%w: %q", types.ErrFieldNotFound, name)
		}
		if current.Attributes != nil {
			attrs.Origin = current.Attributes.Origin
		}
		for _, c := range scanCollections {
			if err := as.SetAttributes(c, name, attrs); err != nil {
				return err
			}
		}
		return nil
	})
}

// Tags returns the tags of the current collection with their attributes
func (p *Project) Tags() ([]types.Field, error) {
	var fields []types.Field
	err := p.Read(func(s store.Session) error {
		fields = attributes.Wrap(s).GetFields(types.CollectionCurrent)
		return nil
	})
	return fields, err
}

// Tag returns one tag of the current collection, nil if it does not exist
func (p *Project) Tag(name string) (*types.Field, error) {
	var field *types.Field
	err := p.Read(func(s store.Session) error {
		field = attributes.Wrap(s).GetField(types.CollectionCurrent, name)
		return nil
	})
	return field, err
}

// ShownTags returns the visible tags
func (p *Project) ShownTags() ([]string, error) {
	var tags []string
	err := p.Read(func(s store.Session) error {
		var err error
		tags, err = attributes.Wrap(s).GetShownTags()
		return err
	})
	return tags, err
}

// SetShownTags makes exactly names visible
func (p *Project) SetShownTags(names []string) error {
	return p.Write(func(s store.Session) error {
		return attributes.Wrap(s).SetShownTags(names)
	})
}

// Scans returns the keys of the current scans in store order
func (p *Project) Scans() ([]string, error) {
	var keys []string
	err := p.Read(func(s store.Session) error {
		var err error
		keys, err = s.DocumentKeys(types.CollectionCurrent)
		return err
	})
	return keys, err
}

// Scan returns a current scan, nil if it does not exist
func (p *Project) Scan(path string) (*types.Document, error) {
	var doc *types.Document
	err := p.Read(func(s store.Session) error {
		doc = s.GetDocument(types.CollectionCurrent, path)
		return nil
	})
	return doc, err
}

// Search runs f over every current scan, looking into the visible tags.
// Scans, tags and both search phases come from one read session.
func (p *Project) Search(f *filter.Filter) ([]string, error) {
	opts := []filter.EvalOption{filter.WithLogger(p.queries)}
	if p.observer != nil {
		opts = append(opts, filter.WithObserver(p.observer))
	}

	var result []string
	err := p.Read(func(s store.Session) error {
		scans, err := s.DocumentKeys(types.CollectionCurrent)
		if err != nil {
			return err
		}
		tags, err := attributes.Wrap(s).GetShownTags()
		if err != nil {
			return err
		}
		result, err = f.Evaluate(s, scans, tags, opts...)
		return err
	})
	return result, err
}
