package index

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// phpArray 保持键顺序的 PHP 数组或对象属性表
type phpArray struct {
	keys   []interface{}
	values []interface{}
}

// sequential 键为 0..n-1 的整数时编码为 JSON 数组
func (a *phpArray) sequential() bool {
	for i, k := range a.keys {
		n, ok := k.(int64)
		if !ok || n != int64(i) {
			return false
		}
	}
	return true
}

type phpDecoder struct {
	data string
	pos  int
}

func (d *phpDecoder) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("unserialize at %d: %s", d.pos, fmt.Sprintf(format, args...))
}

func (d *phpDecoder) expect(b byte) error {
	if d.pos >= len(d.data) || d.data[d.pos] != b {
		return d.errorf("expected %q", b)
	}
	d.pos++
	return nil
}

// readUntil 读取到分隔符为止（不含分隔符）并跳过分隔符
func (d *phpDecoder) readUntil(b byte) (string, error) {
	i := strings.IndexByte(d.data[d.pos:], b)
	if i < 0 {
		return "", d.errorf("missing %q", b)
	}
	s := d.data[d.pos : d.pos+i]
	d.pos += i + 1
	return s, nil
}

func (d *phpDecoder) readLength() (int, error) {
	s, err := d.readUntil(':')
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, d.errorf("invalid length %q", s)
	}
	return n, nil
}

func (d *phpDecoder) readString(n int) (string, error) {
	if err := d.expect('"'); err != nil {
		return "", err
	}
	if n > len(d.data)-d.pos {
		return "", d.errorf("string overflows input")
	}
	s := d.data[d.pos : d.pos+n]
	d.pos += n
	if err := d.expect('"'); err != nil {
		return "", err
	}
	return s, nil
}

func (d *phpDecoder) readEntries(n int) (*phpArray, error) {
	if err := d.expect('{'); err != nil {
		return nil, err
	}
	// 每个元素至少占用一个字节，长度超过剩余输入必然是损坏的数据
	if n > len(d.data)-d.pos {
		return nil, d.errorf("array length %d overflows input", n)
	}
	arr := &phpArray{keys: make([]interface{}, 0, n), values: make([]interface{}, 0, n)}
	for i := 0; i < n; i++ {
		key, err := d.value()
		if err != nil {
			return nil, err
		}
		switch key.(type) {
		case int64, string:
		default:
			return nil, d.errorf("invalid array key")
		}
		val, err := d.value()
		if err != nil {
			return nil, err
		}
		arr.keys = append(arr.keys, key)
		arr.values = append(arr.values, val)
	}
	if err := d.expect('}'); err != nil {
		return nil, err
	}
	return arr, nil
}

func (d *phpDecoder) value() (interface{}, error) {
	if d.pos+1 >= len(d.data) {
		return nil, d.errorf("unexpected end of input")
	}
	kind := d.data[d.pos]
	if kind == 'N' {
		d.pos++
		return nil, d.expect(';')
	}
	d.pos++
	if err := d.expect(':'); err != nil {
		return nil, err
	}

	switch kind {
	case 'b':
		s, err := d.readUntil(';')
		if err != nil {
			return nil, err
		}
		if s != "0" && s != "1" {
			return nil, d.errorf("invalid bool %q", s)
		}
		return s == "1", nil
	case 'i':
		s, err := d.readUntil(';')
		if err != nil {
			return nil, err
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, d.errorf("invalid int %q", s)
		}
		return n, nil
	case 'd':
		s, err := d.readUntil(';')
		if err != nil {
			return nil, err
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, d.errorf("invalid float %q", s)
		}
		return f, nil
	case 's':
		n, err := d.readLength()
		if err != nil {
			return nil, err
		}
		s, err := d.readString(n)
		if err != nil {
			return nil, err
		}
		return s, d.expect(';')
	case 'a':
		n, err := d.readLength()
		if err != nil {
			return nil, err
		}
		return d.readEntries(n)
	case 'O':
		n, err := d.readLength()
		if err != nil {
			return nil, err
		}
		if _, err := d.readString(n); err != nil {
			return nil, err
		}
		if err := d.expect(':'); err != nil {
			return nil, err
		}
		count, err := d.readLength()
		if err != nil {
			return nil, err
		}
		return d.readEntries(count)
	default:
		return nil, d.errorf("unsupported type %q", kind)
	}
}

// Unserialize 解析 PHP serialize 格式
func Unserialize(s string) (interface{}, error) {
	d := &phpDecoder{data: s}
	v, err := d.value()
	if err != nil {
		return nil, err
	}
	if d.pos != len(s) {
		return nil, d.errorf("trailing data")
	}
	return v, nil
}

func looksSerialized(s string) bool {
	if s == "N;" {
		return true
	}
	if len(s) < 4 || s[1] != ':' {
		return false
	}
	switch s[0] {
	case 's', 'a', 'O':
		return strings.HasSuffix(s, ";") || strings.HasSuffix(s, "}")
	case 'b', 'i', 'd':
		return strings.HasSuffix(s, ";")
	}
	return false
}

// MaybeUnserialize 值为序列化格式时解码，否则原样返回
func MaybeUnserialize(s string) interface{} {
	trimmed := strings.TrimSpace(s)
	if !looksSerialized(trimmed) {
		return s
	}
	v, err := Unserialize(trimmed)
	if err != nil {
		return s
	}
	return v
}

// MetaValue 将元数据值转换为引擎字段值，数组与对象编码为 JSON
func MetaValue(raw string) (interface{}, error) {
	switch v := MaybeUnserialize(raw).(type) {
	case *phpArray:
		var buf bytes.Buffer
		if err := writeJSON(&buf, v); err != nil {
			return nil, err
		}
		return buf.String(), nil
	case bool:
		if v {
			return "1", nil
		}
		return "", nil
	default:
		return v, nil
	}
}

func writeJSON(buf *bytes.Buffer, v interface{}) error {
	switch val := v.(type) {
	case *phpArray:
		if val.sequential() {
			buf.WriteByte('[')
			for i, item := range val.values {
				if i > 0 {
					buf.WriteByte(',')
				}
				if err := writeJSON(buf, item); err != nil {
					return err
				}
			}
			buf.WriteByte(']')
			return nil
		}
		buf.WriteByte('{')
		for i, key := range val.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, fmt.Sprint(key)); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeJSON(buf, val.values[i]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	default:
		enc := json.NewEncoder(buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(val); err != nil {
			return err
		}
		// Encode 会追加换行
		buf.Truncate(buf.Len() - 1)
		return nil
	}
}
