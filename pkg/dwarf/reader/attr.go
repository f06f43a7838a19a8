package reader

import (
	"github.com/hitzhangjie/godwarf/pkg/dwarf/godwarf"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/util"
)

// Attr is one decoded attribute of an entry.
type Attr struct {
	Name  godwarf.Attr
	Form  godwarf.Form
	Value Value
}

// AttrIterator decodes the attributes of one entry in declaration order.
// Decoding an attribute never depends on a later one, so the caller may
// stop at any point.
type AttrIterator struct {
	entry *Entry
	buf   util.Buf
	next  int
	err   error
}

// Next returns the next attribute, or nil after the last one. Once it
// fails it keeps returning the same error; attributes returned before
// stay valid.
func (it *AttrIterator) Next() (*Attr, error) {
	if it.err != nil {
		return nil, it.err
	}
	fields := it.entry.Abbrev.Fields
	if it.next >= len(fields) {
		return nil, nil
	}
	spec := fields[it.next]

	v, err := it.entry.unit.decodeForm(&it.buf, spec.Form, spec)
	if err != nil {
		it.err = err
		return nil, err
	}
	it.next++
	return &Attr{Name: spec.Attr, Form: spec.Form, Value: v}, nil
}

func (u *Unit) decodeForm(b *util.Buf, form godwarf.Form, spec AttrSpec) (Value, error) {
	formOff := b.Offset()

	form, err := resolveIndirect(b, form)
	if err != nil {
		return nil, err
	}

	switch form {
	case godwarf.FormAddr:
		v, err := b.Uint(int(u.AddressSize))
		return Address(v), err

	case godwarf.FormBlock1, godwarf.FormBlock2, godwarf.FormBlock4, godwarf.FormBlock:
		n, err := blockLen(b, form)
		if err != nil {
			return nil, err
		}
		v, err := slice(b, n)
		return Block(v), err

	case godwarf.FormExprloc:
		n, err := b.ULEB128()
		if err != nil {
			return nil, err
		}
		v, err := slice(b, n)
		return Exprloc(v), err

	case godwarf.FormData1, godwarf.FormData2, godwarf.FormData4, godwarf.FormData8:
		v, err := b.Uint(fixedSize(form))
		return Udata(v), err

	case godwarf.FormData16:
		v, err := b.Slice(16)
		return Data16(v), err

	case godwarf.FormUdata:
		v, err := b.ULEB128()
		return Udata(v), err

	case godwarf.FormSdata:
		v, err := b.SLEB128()
		return Sdata(v), err

	case godwarf.FormImplicitConst:
		return Sdata(spec.ImplicitConst), nil

	case godwarf.FormFlag:
		v, err := b.U8()
		return Flag(v != 0), err

	case godwarf.FormFlagPresent:
		return Flag(true), nil

	case godwarf.FormString:
		v, err := b.CString()
		return String(v), err

	case godwarf.FormStrp, godwarf.FormStrpSup:
		v, err := b.OffsetField(u.Dwarf64)
		if err != nil {
			return nil, err
		}
		if form == godwarf.FormStrp && u.data.Str != nil && !u.data.Str.Contains(v) {
			return nil, b.ErrorAt(formOff, util.ErrBadOffset, "string offset %#x outside .debug_str", v)
		}
		return StrRef(v), nil

	case godwarf.FormLineStrp:
		v, err := b.OffsetField(u.Dwarf64)
		if err != nil {
			return nil, err
		}
		if u.data.LineStr != nil && !u.data.LineStr.Contains(v) {
			return nil, b.ErrorAt(formOff, util.ErrBadOffset, "string offset %#x outside .debug_line_str", v)
		}
		return LineStrRef(v), nil

	case godwarf.FormStrx, godwarf.FormStrx1, godwarf.FormStrx2, godwarf.FormStrx3, godwarf.FormStrx4:
		v, err := readIndex(b, form)
		return StrIndex(v), err

	case godwarf.FormAddrx, godwarf.FormAddrx1, godwarf.FormAddrx2, godwarf.FormAddrx3, godwarf.FormAddrx4:
		v, err := readIndex(b, form)
		return AddrIndex(v), err

	case godwarf.FormLoclistx, godwarf.FormRnglistx:
		v, err := b.ULEB128()
		return ListIndex(v), err

	case godwarf.FormRef1, godwarf.FormRef2, godwarf.FormRef4, godwarf.FormRef8, godwarf.FormRefUdata:
		var (
			v   uint64
			err error
		)
		if form == godwarf.FormRefUdata {
			v, err = b.ULEB128()
		} else {
			v, err = b.Uint(fixedSize(form))
		}
		if err != nil {
			return nil, err
		}
		if v >= u.Size() {
			return nil, b.ErrorAt(formOff, util.ErrBadOffset, "reference %#x past unit of %#x bytes", v, u.Size())
		}
		return UnitRef(v), nil

	case godwarf.FormRefAddr:
		v, err := b.Uint(u.refAddrSize())
		if err != nil {
			return nil, err
		}
		if !u.data.Info.Contains(v) {
			return nil, b.ErrorAt(formOff, util.ErrBadOffset, "reference %#x outside .debug_info", v)
		}
		return InfoRef(v), nil

	case godwarf.FormRefSup4, godwarf.FormRefSup8:
		v, err := b.Uint(fixedSize(form))
		return SupRef(v), err

	case godwarf.FormRefSig8:
		v, err := b.U64()
		return SigRef(v), err

	case godwarf.FormSecOffset:
		v, err := b.OffsetField(u.Dwarf64)
		return SecOffset(v), err

	}

	return nil, b.ErrorAt(formOff, util.ErrUnsupportedForm, "%v", form)
}

// skipForm advances b past one value of the given form without decoding
// or validating it.
func (u *Unit) skipForm(b *util.Buf, form godwarf.Form) error {
	form, err := resolveIndirect(b, form)
	if err != nil {
		return err
	}

	switch form {
	case godwarf.FormFlagPresent, godwarf.FormImplicitConst:
		return nil

	case godwarf.FormAddr:
		return b.Skip(int(u.AddressSize))

	case godwarf.FormRefAddr:
		return b.Skip(u.refAddrSize())

	case godwarf.FormStrp, godwarf.FormStrpSup, godwarf.FormLineStrp, godwarf.FormSecOffset:
		return b.Skip(u.OffsetSize())

	case godwarf.FormBlock1, godwarf.FormBlock2, godwarf.FormBlock4, godwarf.FormBlock, godwarf.FormExprloc:
		var (
			n   uint64
			err error
		)
		if form == godwarf.FormExprloc {
			n, err = b.ULEB128()
		} else {
			n, err = blockLen(b, form)
		}
		if err != nil {
			return err
		}
		_, err = slice(b, n)
		return err

	case godwarf.FormUdata, godwarf.FormRefUdata, godwarf.FormStrx, godwarf.FormAddrx,
		godwarf.FormLoclistx, godwarf.FormRnglistx:
		_, err := b.ULEB128()
		return err

	case godwarf.FormSdata:
		_, err := b.SLEB128()
		return err

	case godwarf.FormString:
		_, err := b.CString()
		return err

	}

	if n := fixedSize(form); n > 0 {
		return b.Skip(n)
	}
	return b.Errorf(util.ErrUnsupportedForm, "%v", form)
}

// resolveIndirect reads the actual form of a DW_FORM_indirect value. A
// chain of indirect forms is followed iteratively.
func resolveIndirect(b *util.Buf, form godwarf.Form) (godwarf.Form, error) {
	for form == godwarf.FormIndirect {
		actual, err := b.ULEB128()
		if err != nil {
			return 0, err
		}
		form = godwarf.Form(actual)
	}
	return form, nil
}

// refAddrSize is the width of DW_FORM_ref_addr: the address size in
// DWARF 2, the offset size afterwards.
func (u *Unit) refAddrSize() int {
	if u.Version == 2 {
		return int(u.AddressSize)
	}
	return u.OffsetSize()
}

// fixedSize returns the width of forms whose width does not depend on the
// unit, or 0.
func fixedSize(form godwarf.Form) int {
	switch form {
	case godwarf.FormData1, godwarf.FormRef1, godwarf.FormFlag, godwarf.FormStrx1, godwarf.FormAddrx1:
		return 1
	case godwarf.FormData2, godwarf.FormRef2, godwarf.FormStrx2, godwarf.FormAddrx2:
		return 2
	case godwarf.FormStrx3, godwarf.FormAddrx3:
		return 3
	case godwarf.FormData4, godwarf.FormRef4, godwarf.FormRefSup4, godwarf.FormStrx4, godwarf.FormAddrx4:
		return 4
	case godwarf.FormData8, godwarf.FormRef8, godwarf.FormRefSup8, godwarf.FormRefSig8:
		return 8
	case godwarf.FormData16:
		return 16
	}
	return 0
}

func blockLen(b *util.Buf, form godwarf.Form) (uint64, error) {
	switch form {
	case godwarf.FormBlock1:
		v, err := b.U8()
		return uint64(v), err
	case godwarf.FormBlock2:
		v, err := b.U16()
		return uint64(v), err
	case godwarf.FormBlock4:
		v, err := b.U32()
		return uint64(v), err
	}
	return b.ULEB128()
}

// slice reads n bytes, checking n against the data left before any
// conversion so that a huge length cannot wrap.
func slice(b *util.Buf, n uint64) ([]byte, error) {
	if n > uint64(b.Remaining()) {
		return nil, b.Errorf(util.ErrUnexpectedEOF, "block of %d bytes, %d left", n, b.Remaining())
	}
	return b.Slice(int(n))
}

func readIndex(b *util.Buf, form godwarf.Form) (uint64, error) {
	switch form {
	case godwarf.FormStrx, godwarf.FormAddrx:
		return b.ULEB128()
	case godwarf.FormStrx3, godwarf.FormAddrx3:
		v, err := b.Slice(3)
		if err != nil {
			return 0, err
		}
		var full [4]byte
		if b.Order().Uint16([]byte{0, 1}) == 1 {
			// big endian
			copy(full[1:], v)
			return uint64(b.Order().Uint32(full[:])), nil
		}
		copy(full[:], v)
		return uint64(b.Order().Uint32(full[:])), nil
	}
	return b.Uint(fixedSize(form))
}

// String resolves a string-valued attribute: inline strings are returned
// as is, .debug_str and .debug_line_str references are read from their
// section.
func (d *Data) String(v Value) (string, error) {
	var (
		sec *godwarf.Section
		off uint64
	)
	switch v := v.(type) {
	case String:
		return string(v), nil
	case StrRef:
		sec, off = d.Str, uint64(v)
	case LineStrRef:
		sec, off = d.LineStr, uint64(v)
	default:
		return "", &util.DecodeError{Section: ".debug_info", Err: util.ErrUnsupportedForm, Detail: "value is not a string: " + Format(v)}
	}
	if sec == nil {
		return "", &util.DecodeError{Section: ".debug_info", Offset: off, Err: util.ErrBadOffset, Detail: "string section not loaded"}
	}
	if !sec.Contains(off) {
		return "", &util.DecodeError{Section: sec.Name, Offset: off, Err: util.ErrBadOffset, Detail: "string offset past the section"}
	}
	b, err := sec.BufAt(off)
	if err != nil {
		return "", err
	}
	s, err := b.CString()
	if err != nil {
		return "", err
	}
	return string(s), nil
}
