package danmaku

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// elem mirrors the subset of DanmakuElem (spec §4.5, §6: "DmSegMobileReply {
// repeated DanmakuElem elems = 1 }") this compiler needs: progress, mode,
// fontsize, color, content. Other fields (id, mid_hash, ctime, weight,
// action, pool, dmid_str, attr) are decoded upstream but unused here.
type elem struct {
	progress int32
	mode     int32
	fontsize int32
	color    uint32
	content  string
}

// DecodeSegment decodes one DmSegMobileReply protobuf message (the body of
// a danmaku-segment GET response) into a flat Danmu slice, hand-decoded via
// protowire since no protoc-generated bindings are available (DESIGN.md).
func DecodeSegment(data []byte) ([]Danmu, error) {
	var out []Danmu
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("danmaku: invalid tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		if num != 1 || typ != protowire.BytesType {
			skip := protowire.ConsumeFieldValue(num, typ, b)
			if skip < 0 {
				return nil, fmt.Errorf("danmaku: skip field: %w", protowire.ParseError(skip))
			}
			b = b[skip:]
			continue
		}
		elemBytes, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, fmt.Errorf("danmaku: invalid elem bytes: %w", protowire.ParseError(n))
		}
		b = b[n:]
		e, err := decodeElem(elemBytes)
		if err != nil {
			return nil, err
		}
		out = append(out, danmuFromElem(e))
	}
	return out, nil
}

func decodeElem(data []byte) (elem, error) {
	var e elem
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return e, fmt.Errorf("danmaku: invalid elem tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case 2: // progress
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return e, fmt.Errorf("danmaku: invalid progress: %w", protowire.ParseError(n))
			}
			e.progress = int32(v)
			b = b[n:]
		case 3: // mode
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return e, fmt.Errorf("danmaku: invalid mode: %w", protowire.ParseError(n))
			}
			e.mode = int32(v)
			b = b[n:]
		case 4: // fontsize
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return e, fmt.Errorf("danmaku: invalid fontsize: %w", protowire.ParseError(n))
			}
			e.fontsize = int32(v)
			b = b[n:]
		case 5: // color
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return e, fmt.Errorf("danmaku: invalid color: %w", protowire.ParseError(n))
			}
			e.color = uint32(v)
			b = b[n:]
		case 7: // content
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return e, fmt.Errorf("danmaku: invalid content: %w", protowire.ParseError(n))
			}
			e.content = string(v)
			b = b[n:]
		default:
			skip := protowire.ConsumeFieldValue(num, typ, b)
			if skip < 0 {
				return e, fmt.Errorf("danmaku: skip elem field: %w", protowire.ParseError(skip))
			}
			b = b[skip:]
		}
	}
	return e, nil
}

func danmuFromElem(e elem) Danmu {
	return Danmu{
		TimelineS: float64(e.progress) / 1000.0,
		Content:   e.content,
		Type:      typeFromMode(e.mode),
		FontSize:  uint32(e.fontsize),
		R:         uint8((e.color >> 16) & 0xFF),
		G:         uint8((e.color >> 8) & 0xFF),
		B:         uint8(e.color & 0xFF),
	}
}
