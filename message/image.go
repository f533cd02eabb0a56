package message

import (
	"fmt"

	"shopwire/codec"
	"shopwire/protocol"
)

// ImageMeta describes an image independently of its bytes.
type ImageMeta struct {
	Type      protocol.ImageType
	Filename  string
	Format    string
	FileSize  uint32
	RelatedID int32 // owning user or product
}

func putMeta(w *codec.Writer, m *ImageMeta) {
	w.Uint8(uint8(m.Type))
	w.String(m.Filename)
	w.String(m.Format)
	w.Uint32(m.FileSize)
	w.Int32(m.RelatedID)
}

func getMeta(r *codec.Reader, m *ImageMeta) error {
	t, err := r.Uint8()
	if err != nil {
		return err
	}
	m.Type = protocol.ImageType(t)
	if !m.Type.Valid() {
		return fmt.Errorf("%w: image type %d", codec.ErrMalformed, t)
	}
	if err := readStrings(r, &m.Filename, &m.Format); err != nil {
		return err
	}
	if m.FileSize, err = r.Uint32(); err != nil {
		return err
	}
	m.RelatedID, err = r.Int32()
	return err
}

// UploadImageRequest is the header frame of an upload. Its sequence id names the
// transfer; the bytes follow as ImageChunk frames. Data is filled in by the server
// once every chunk has arrived and is never put on the wire.
type UploadImageRequest struct {
	Meta        ImageMeta
	TotalChunks uint32
	ChunkSize   uint32

	Data []byte
}

func (*UploadImageRequest) Type() protocol.MessageType { return protocol.UploadImageRequest }

func (m *UploadImageRequest) MarshalWire(w *codec.Writer) {
	putMeta(w, &m.Meta)
	w.Uint32(m.TotalChunks)
	w.Uint32(m.ChunkSize)
}

func (m *UploadImageRequest) UnmarshalWire(r *codec.Reader) (err error) {
	if err = getMeta(r, &m.Meta); err != nil {
		return err
	}
	if m.TotalChunks, err = r.Uint32(); err != nil {
		return err
	}
	m.ChunkSize, err = r.Uint32()
	return err
}

type UploadImageResult struct {
	ImageURL string
	ImageID  string
}

func (*UploadImageResult) ResponseType() protocol.MessageType { return protocol.UploadImageResponse }

func (m *UploadImageResult) MarshalWire(w *codec.Writer) {
	w.String(m.ImageURL)
	w.String(m.ImageID)
}

func (m *UploadImageResult) UnmarshalWire(r *codec.Reader) error {
	return readStrings(r, &m.ImageURL, &m.ImageID)
}

type UploadImageResponse = Response[UploadImageResult]

// DownloadImageRequest looks an image up by id. ImageType is a hint; zero leaves it open.
type DownloadImageRequest struct {
	ImageID   string
	ImageType protocol.ImageType
	RelatedID int32
}

func (*DownloadImageRequest) Type() protocol.MessageType { return protocol.DownloadImageRequest }

func (m *DownloadImageRequest) MarshalWire(w *codec.Writer) {
	w.String(m.ImageID)
	w.Uint8(uint8(m.ImageType))
	w.Int32(m.RelatedID)
}

func (m *DownloadImageRequest) UnmarshalWire(r *codec.Reader) (err error) {
	if m.ImageID, err = r.String(); err != nil {
		return err
	}
	t, err := r.Uint8()
	if err != nil {
		return err
	}
	m.ImageType = protocol.ImageType(t)
	if t != 0 && !m.ImageType.Valid() {
		return fmt.Errorf("%w: image type %d", codec.ErrMalformed, t)
	}
	m.RelatedID, err = r.Int32()
	return err
}

// DownloadImageResult heads a download; TotalChunks ImageChunk frames carrying the
// response's sequence id as transfer id follow it. Data is assembled by the client.
type DownloadImageResult struct {
	Meta        ImageMeta
	TotalChunks uint32
	ChunkSize   uint32

	Data []byte
}

func (*DownloadImageResult) ResponseType() protocol.MessageType {
	return protocol.DownloadImageResponse
}

func (m *DownloadImageResult) MarshalWire(w *codec.Writer) {
	putMeta(w, &m.Meta)
	w.Uint32(m.TotalChunks)
	w.Uint32(m.ChunkSize)
}

func (m *DownloadImageResult) UnmarshalWire(r *codec.Reader) (err error) {
	if err = getMeta(r, &m.Meta); err != nil {
		return err
	}
	if m.TotalChunks, err = r.Uint32(); err != nil {
		return err
	}
	m.ChunkSize, err = r.Uint32()
	return err
}

type DownloadImageResponse = Response[DownloadImageResult]

type DeleteImageRequest struct {
	ImageID string
}

func (*DeleteImageRequest) Type() protocol.MessageType { return protocol.DeleteImageRequest }

func (m *DeleteImageRequest) MarshalWire(w *codec.Writer) { w.String(m.ImageID) }

func (m *DeleteImageRequest) UnmarshalWire(r *codec.Reader) error {
	return readStrings(r, &m.ImageID)
}

type DeleteImageResult struct{ empty }

func (*DeleteImageResult) ResponseType() protocol.MessageType { return protocol.DeleteImageResponse }

type DeleteImageResponse = Response[DeleteImageResult]

// ImageChunk carries one slice of an image transfer. Chunks travel with sequence id 0
// and are matched to their transfer by TransferID.
type ImageChunk struct {
	TransferID uint32
	Index      uint32
	Data       []byte
}

// ChunkOverhead is the encoded size of an ImageChunk minus its data.
const ChunkOverhead = 4 + 4 + 4

func (*ImageChunk) Type() protocol.MessageType { return protocol.ImageChunk }

func (m *ImageChunk) MarshalWire(w *codec.Writer) {
	w.Uint32(m.TransferID)
	w.Uint32(m.Index)
	w.Blob(m.Data)
}

func (m *ImageChunk) UnmarshalWire(r *codec.Reader) (err error) {
	if m.TransferID, err = r.Uint32(); err != nil {
		return err
	}
	if m.Index, err = r.Uint32(); err != nil {
		return err
	}
	m.Data, err = r.Blob()
	return err
}
