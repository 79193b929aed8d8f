package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/netkrida/myhome-sub004/apperror"
	"github.com/netkrida/myhome-sub004/services"
)

// uploadFolders maps the folder names clients may ask for to Cloudinary folders.
var uploadFolders = map[string]string{
	"payout_proofs": services.PayoutProofFolder,
}

type UploadHandler struct {
	storage services.FileStorage
}

// NewUploadHandler accepts a nil storage when Cloudinary is not configured.
func NewUploadHandler(storage services.FileStorage) *UploadHandler {
	return &UploadHandler{storage: storage}
}

// GenerateUploadSignature creates a signature for a direct browser upload.
func (h *UploadHandler) GenerateUploadSignature(c *fiber.Ctx) error {
	if h.storage == nil {
		return apperror.BusinessRule("file uploads are not configured")
	}
	folder, known := uploadFolders[c.Query("folder", "payout_proofs")]
	if !known {
		return apperror.Validation("unknown upload folder %q", c.Query("folder"))
	}
	signature, err := h.storage.SignUpload(folder)
	if err != nil {
		return apperror.Internal(err)
	}
	return ok(c, signature)
}
