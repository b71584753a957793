// Package file stores uploaded assets such as business logos on the local
// filesystem or in an S3-compatible bucket behind a single Storage interface.
//
// Uploads are validated before they touch a backend:
//
//	if err := file.ValidateSize(fh, 2<<20); err != nil {
//		return err
//	}
//	if err := file.ValidateMIMEType(fh, file.ImageMIMETypes...); err != nil {
//		return err
//	}
//	f, err := storage.Save(ctx, fh, "logos/"+userID.String()+file.GetExtension(fh))
//
// The backend is chosen from configuration with New:
//
//	storage, err := file.New(ctx, config.MustLoad[file.Config]())
package file
