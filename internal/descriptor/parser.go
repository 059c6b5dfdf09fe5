package descriptor

import "sort"

// DecodeFunc decodes a raw descriptor's bytes (including the 2-byte header)
// into a typed record.
type DecodeFunc func(raw []byte) (any, error)

// CallbackFunc observes a successfully decoded descriptor.
type CallbackFunc func(raw []byte, decoded any)

type handler struct {
	expectedSize int
	decode       DecodeFunc
	callback     CallbackFunc
}

// Parser walks a concatenated stream of self-delimited USB descriptors,
// dispatching each to a handler registered for its (type, size) pair. The
// same descriptor type may have more than one handler distinguished by
// expected size (e.g. a standard vs. an audio-class endpoint descriptor).
type Parser struct {
	handlers map[byte][]handler
}

// New returns an empty Parser. Register handlers with SetHandler before
// calling Parse.
func New() *Parser {
	return &Parser{handlers: make(map[byte][]handler)}
}

// SetHandler registers a decoder and callback for descriptors of the given
// type whose declared length is at least expectedSize. When more than one
// handler is registered for a type, the handler with the largest
// expectedSize not exceeding the descriptor's declared length is selected.
func (p *Parser) SetHandler(descType byte, expectedSize int, decode DecodeFunc, callback CallbackFunc) {
	list := append(p.handlers[descType], handler{
		expectedSize: expectedSize,
		decode:       decode,
		callback:     callback,
	})
	sort.Slice(list, func(i, j int) bool { return list[i].expectedSize < list[j].expectedSize })
	p.handlers[descType] = list
}

// Parse walks data, dispatching each descriptor to its registered handler
// and returning the total number of bytes consumed. Unrecognized descriptor
// types are skipped (their bytes are still consumed). Parse never treats a
// truncated trailing descriptor as an error: it stops and returns the bytes
// consumed by complete descriptors so far, leaving the caller to decide
// whether that total is sufficient.
func (p *Parser) Parse(data []byte) (int, error) {
	consumed := 0
	for {
		remaining := data[consumed:]
		if len(remaining) < 2 {
			return consumed, nil
		}

		length := int(remaining[0])
		descType := remaining[1]

		if length == 0 {
			return consumed, nil
		}

		handlers := p.handlers[descType]
		if len(handlers) == 0 {
			if len(remaining) < length {
				return consumed, nil
			}
			consumed += length
			continue
		}

		minExpected := handlers[0].expectedSize
		if length < minExpected {
			return consumed, ErrMalformedDescriptor
		}

		if len(remaining) < length {
			return consumed, nil
		}

		h := selectHandler(handlers, length)
		raw := remaining[:length]

		decoded, err := h.decode(raw)
		if err != nil {
			return consumed, err
		}
		h.callback(raw, decoded)

		consumed += length
	}
}

// selectHandler picks the handler with the largest expectedSize not
// exceeding length; handlers is sorted ascending by expectedSize.
func selectHandler(handlers []handler, length int) handler {
	best := handlers[0]
	for _, h := range handlers {
		if h.expectedSize <= length {
			best = h
		}
	}
	return best
}
