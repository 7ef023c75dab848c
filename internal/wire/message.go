package wire

// Message is the random-access view of a tagged message required by
// spec.md §4.1: encode(tagged-message) -> bytes, decode(bytes) ->
// tagged-message, get_field(tag) -> bytes | missing. Response and the
// other encoded wire types in package roughtime use the lower-level
// EncodeState directly for their fixed schemas; Message exists for
// callers that want to treat an arbitrary message as a bag of fields,
// such as roughtime.DecodeRequest and the tests that decode a response.
type Message struct {
	tags []Tag
	vals [][]byte
}

// NewMessage returns an empty message ready to accept fields in strictly
// ascending tag order via Set.
func NewMessage() *Message {
	return &Message{}
}

// Set appends a field. Tags must be supplied in strictly ascending order,
// matching the wire requirement that tags be sorted (spec.md §4.1).
func (m *Message) Set(t Tag, v []byte) error {
	if len(m.tags) > 0 && m.tags[len(m.tags)-1] >= t {
		return ErrUnsortedTags
	}
	m.tags = append(m.tags, t)
	m.vals = append(m.vals, v)
	return nil
}

// GetField returns the value for t and true, or nil and false if t is not
// present.
func (m *Message) GetField(t Tag) ([]byte, bool) {
	for i, tag := range m.tags {
		if tag == t {
			return m.vals[i], true
		}
	}
	return nil, false
}

// Tags returns the sorted tags present in the message.
func (m *Message) Tags() []Tag {
	return m.tags
}

// EncodeMessage encodes m to its wire representation.
func EncodeMessage(m *Message) []byte {
	return Encode(func(st *EncodeState) {
		st.NTags(uint32(len(m.tags)))
		for i, t := range m.tags {
			buf := st.Bytes(t, len(m.vals[i]))
			copy(buf, m.vals[i])
		}
	})
}

// DecodeMessage decodes buf into a Message, validating the header exactly
// as DecodeState.SetMessage does (strictly ascending tags, monotonic
// offsets, declared length within buf).
func DecodeMessage(buf []byte) (*Message, error) {
	m := NewMessage()
	err := Decode(buf, func(st *DecodeState) {
		for i := uint32(0); i < st.NumFields(); i++ {
			t, v := st.FieldAt(i)
			if err := m.Set(t, v); err != nil {
				st.Abort(err)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}
