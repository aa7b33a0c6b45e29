package sftpd

import "github.com/pkg/errors"

// encodeAttr writes attr onto e following the wire layout for p's version.
// v3 encodes a single ATTR bitmask with combined ACMODTIME; v4+ add an
// explicit type byte, split access/create/modify times each with their own
// subsecond flag, and textual owner/group in place of numeric uid/gid.
func encodeAttr(e *encoder, attr *Attr, p *protocol) {
	a := p.filter(attr)
	e.uint32(uint32(a.Valid))

	if p.hasExplicitType {
		e.byte(byte(a.Type))
	}

	if a.Valid&AttrSize != 0 {
		e.uint64(a.Size)
	}
	if p.version == protoV6 && a.Valid&AttrAllocationSize != 0 {
		e.uint64(a.AllocationSize)
	}

	if p.hasTextOwnerGroup {
		if a.Valid&AttrOwnerGroup != 0 {
			e.string(a.Owner).string(a.Group)
		}
	} else if a.Valid&AttrUIDGID != 0 {
		e.uint32(a.UID).uint32(a.GID)
	}

	if a.Valid&AttrPermissions != 0 {
		e.uint32(permModeBits(a.Permissions))
	}

	subsecond := a.Valid&AttrSubsecondTimes != 0

	switch {
	case p.hasACMODTime:
		if a.Valid&AttrACMODTime != 0 {
			e.uint32(uint32(a.ATime.Seconds))
			e.uint32(uint32(a.MTime.Seconds))
		}
	default:
		if a.Valid&AttrAccessTime != 0 {
			encodeTime(e, a.ATime, subsecond)
		}
		if p.hasCreateTime && a.Valid&AttrCreateTime != 0 {
			encodeTime(e, a.CreateTime, subsecond)
		}
		if a.Valid&AttrModifyTime != 0 {
			encodeTime(e, a.MTime, subsecond)
		}
		if p.version == protoV6 && a.Valid&AttrCTime != 0 {
			encodeTime(e, a.CTime, subsecond)
		}
	}

	if p.hasBits && a.Valid&AttrBits != 0 {
		e.uint32(a.Bits)
		if p.version == protoV6 {
			e.byte(0) // attrib-bits valid-attrib-bits mask, unused
		}
	}

	if p.hasLinkCount && a.Valid&AttrLinkCount != 0 {
		e.uint32(a.LinkCount)
	}

	if a.Valid&AttrExtended != 0 {
		e.uint32(uint32(len(a.Extended)))
		for _, ext := range a.Extended {
			e.string(ext.Name).string(ext.Data)
		}
	}
}

func encodeTime(e *encoder, t Timestamp, subsecond bool) {
	e.uint64(uint64(t.Seconds))
	if subsecond {
		e.uint32(t.Nanoseconds)
	}
}

// decodeAttr parses an incoming Attr according to p's wire layout. Bits
// outside p.permittedAttrs that a client sends anyway are rejected with
// errBadMessage rather than silently accepted, since accepting them would
// imply a capability the protocol table doesn't actually offer.
func decodeAttr(d *decoder, p *protocol) (*Attr, error) {
	flags, err := d.uint32()
	if err != nil {
		return nil, err
	}
	a := &Attr{Valid: AttrMask(flags)}

	if p.hasExplicitType {
		tb, err := d.byte()
		if err != nil {
			return nil, err
		}
		a.Type = FileType(tb)
	}

	if a.Valid&AttrSize != 0 {
		if a.Size, err = d.uint64(); err != nil {
			return nil, err
		}
	}
	if p.version == protoV6 && a.Valid&AttrAllocationSize != 0 {
		if a.AllocationSize, err = d.uint64(); err != nil {
			return nil, err
		}
	}

	if p.hasTextOwnerGroup {
		if a.Valid&AttrOwnerGroup != 0 {
			if a.Owner, err = d.string(); err != nil {
				return nil, err
			}
			if a.Group, err = d.string(); err != nil {
				return nil, err
			}
		}
	} else if a.Valid&AttrUIDGID != 0 {
		if a.UID, err = d.uint32(); err != nil {
			return nil, err
		}
		if a.GID, err = d.uint32(); err != nil {
			return nil, err
		}
	}

	if a.Valid&AttrPermissions != 0 {
		perm, err := d.uint32()
		if err != nil {
			return nil, err
		}
		a.Permissions = perm
	}

	subsecond := a.Valid&AttrSubsecondTimes != 0

	switch {
	case p.hasACMODTime:
		if a.Valid&AttrACMODTime != 0 {
			atime, err := d.uint32()
			if err != nil {
				return nil, err
			}
			mtime, err := d.uint32()
			if err != nil {
				return nil, err
			}
			a.ATime = Timestamp{Seconds: int64(int32(atime))}
			a.MTime = Timestamp{Seconds: int64(int32(mtime))}
		}
	default:
		if a.Valid&AttrAccessTime != 0 {
			if a.ATime, err = decodeTime(d, subsecond); err != nil {
				return nil, err
			}
		}
		if p.hasCreateTime && a.Valid&AttrCreateTime != 0 {
			if a.CreateTime, err = decodeTime(d, subsecond); err != nil {
				return nil, err
			}
		}
		if a.Valid&AttrModifyTime != 0 {
			if a.MTime, err = decodeTime(d, subsecond); err != nil {
				return nil, err
			}
		}
		if p.version == protoV6 && a.Valid&AttrCTime != 0 {
			if a.CTime, err = decodeTime(d, subsecond); err != nil {
				return nil, err
			}
		}
	}

	if p.hasBits && a.Valid&AttrBits != 0 {
		if a.Bits, err = d.uint32(); err != nil {
			return nil, err
		}
		if p.version == protoV6 {
			if _, err = d.byte(); err != nil {
				return nil, err
			}
		}
	}

	if p.hasLinkCount && a.Valid&AttrLinkCount != 0 {
		if a.LinkCount, err = d.uint32(); err != nil {
			return nil, err
		}
	}

	if a.Valid&AttrExtended != 0 {
		n, err := d.uint32()
		if err != nil {
			return nil, err
		}
		a.Extended = make([]ExtPair, n)
		for i := range a.Extended {
			if a.Extended[i].Name, err = d.string(); err != nil {
				return nil, err
			}
			if a.Extended[i].Data, err = d.string(); err != nil {
				return nil, err
			}
		}
	}

	// Reject attribute bits this version's table doesn't define, rather
	// than letting them through unfiltered: a client claiming v3 but
	// setting AttrCreateTime has sent an internally inconsistent packet.
	if AttrMask(flags)&^(p.permittedAttrs|AttrExtended) != 0 {
		return nil, errors.Wrap(ErrBadMessage, "attribute bits not valid for negotiated version")
	}

	return a, nil
}

func decodeTime(d *decoder, subsecond bool) (Timestamp, error) {
	sec, err := d.uint64()
	if err != nil {
		return Timestamp{}, err
	}
	t := Timestamp{Seconds: int64(sec)}
	if subsecond {
		ns, err := d.uint32()
		if err != nil {
			return Timestamp{}, err
		}
		t.Nanoseconds = ns
	}
	return t, nil
}
