package imgbuf

// Attribute is one named metadata entry on an ImageSpec. Values are typically
// int, float64, or string, but any value a codec hands over is kept verbatim.
type Attribute struct {
	Name  string
	Value any
}

// attrList keeps attributes unique by name while preserving insertion order,
// so metadata round-trips through read/write in the order the file had it.
type attrList struct {
	entries []Attribute
	index   map[string]int
}

func (a *attrList) set(name string, value any) {
	if i, ok := a.index[name]; ok {
		a.entries[i].Value = value
		return
	}
	if a.index == nil {
		a.index = make(map[string]int)
	}
	a.index[name] = len(a.entries)
	a.entries = append(a.entries, Attribute{Name: name, Value: value})
}

func (a *attrList) get(name string) (any, bool) {
	if i, ok := a.index[name]; ok {
		return a.entries[i].Value, true
	}
	return nil, false
}

func (a *attrList) erase(name string) {
	i, ok := a.index[name]
	if !ok {
		return
	}
	a.entries = append(a.entries[:i], a.entries[i+1:]...)
	delete(a.index, name)
	for j := i; j < len(a.entries); j++ {
		a.index[a.entries[j].Name] = j
	}
}

func (a *attrList) copy() attrList {
	if len(a.entries) == 0 {
		return attrList{}
	}
	dup := attrList{
		entries: append([]Attribute(nil), a.entries...),
		index:   make(map[string]int, len(a.index)),
	}
	for k, v := range a.index {
		dup.index[k] = v
	}
	return dup
}

// SetAttr sets a named metadata attribute, replacing the value in place if the
// name already exists (insertion order is preserved).
func (s *ImageSpec) SetAttr(name string, value any) {
	s.attrs.set(name, value)
}

// Attr returns the attribute value and whether it exists.
func (s *ImageSpec) Attr(name string) (any, bool) {
	return s.attrs.get(name)
}

// EraseAttr removes the named attribute if present.
func (s *ImageSpec) EraseAttr(name string) {
	s.attrs.erase(name)
}

// Attrs returns all attributes in insertion order. The slice is shared; do
// not mutate it.
func (s *ImageSpec) Attrs() []Attribute {
	return s.attrs.entries
}

// AttrInt returns the attribute as an int, or def when absent or of another
// type. Widening from smaller integer kinds is applied.
func (s *ImageSpec) AttrInt(name string, def int) int {
	v, ok := s.attrs.get(name)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case uint16:
		return int(n)
	case uint32:
		return int(n)
	}
	return def
}

// AttrFloat returns the attribute as a float64, or def when absent.
func (s *ImageSpec) AttrFloat(name string, def float64) float64 {
	v, ok := s.attrs.get(name)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	}
	return def
}

// AttrString returns the attribute as a string, or def when absent.
func (s *ImageSpec) AttrString(name, def string) string {
	if v, ok := s.attrs.get(name); ok {
		if str, ok := v.(string); ok {
			return str
		}
	}
	return def
}
