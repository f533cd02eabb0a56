package shop

import (
	"context"

	"shopwire/imagestore"
	"shopwire/message"
	"shopwire/protocol"
)

// UploadImage stores an assembled upload. An avatar becomes the user's avatar URL and a
// detail image is appended to the product's description images.
func (s *Service) UploadImage(ctx context.Context, req *message.UploadImageRequest) *message.UploadImageResponse {
	m := req.Meta
	if _, err := imagestore.NormalizeFormat(m.Format); err != nil {
		return message.Fail[message.UploadImageResult](protocol.InvalidImageFormat, "%v", err)
	}
	if s.opts.MaxImageSize > 0 && len(req.Data) > s.opts.MaxImageSize {
		return message.Fail[message.UploadImageResult](protocol.ImageTooLarge, "image is %d bytes, limit %d", len(req.Data), s.opts.MaxImageSize)
	}
	if len(req.Data) != int(m.FileSize) {
		return message.Fail[message.UploadImageResult](protocol.InvalidRequest, "received %d bytes, announced %d", len(req.Data), m.FileSize)
	}

	img, err := s.images.Put(imagestore.Image{
		Type:      m.Type,
		Filename:  m.Filename,
		Format:    m.Format,
		RelatedID: m.RelatedID,
		Data:      req.Data,
	})
	if err != nil {
		return fail[message.UploadImageResult](s, err)
	}
	if err := s.attach(ctx, img); err != nil {
		_ = s.images.Delete(img.ID)
		return fail[message.UploadImageResult](s, err)
	}
	return message.OK(message.UploadImageResult{ImageURL: img.URL(), ImageID: img.ID})
}

func (s *Service) attach(ctx context.Context, img imagestore.Image) error {
	if img.RelatedID == 0 {
		return nil
	}
	switch img.Type {
	case protocol.UserAvatar:
		u, err := s.store.User(ctx, img.RelatedID)
		if err != nil {
			return err
		}
		u.AvatarURL = img.URL()
		return s.store.UpdateUser(ctx, u)
	case protocol.ProductDetail:
		p, err := s.store.Product(ctx, img.RelatedID)
		if err != nil {
			return err
		}
		p.DescriptionImageURLs = append(p.DescriptionImageURLs, img.URL())
		return s.store.UpdateProduct(ctx, p)
	}
	return nil
}

func (s *Service) DownloadImage(ctx context.Context, req *message.DownloadImageRequest) *message.DownloadImageResponse {
	img, err := s.images.Get(req.ImageID)
	if err != nil {
		return fail[message.DownloadImageResult](s, err)
	}
	return message.OK(message.DownloadImageResult{
		Meta: message.ImageMeta{
			Type:      img.Type,
			Filename:  img.Filename,
			Format:    img.Format,
			FileSize:  uint32(len(img.Data)),
			RelatedID: img.RelatedID,
		},
		Data: img.Data,
	})
}

func (s *Service) DeleteImage(ctx context.Context, req *message.DeleteImageRequest) *message.DeleteImageResponse {
	if err := s.images.Delete(req.ImageID); err != nil {
		return fail[message.DeleteImageResult](s, err)
	}
	return message.OK(message.DeleteImageResult{})
}
