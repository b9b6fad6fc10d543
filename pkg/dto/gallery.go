package dto

import "github.com/your-org/idscan/internal/models"

// FaceRequest enrols descriptors under a label. Multipart uploads send the
// same fields as form values next to the image.
type FaceRequest struct {
	Label       string              `json:"label" form:"label"`
	FullName    string              `json:"fullName" form:"fullName"`
	Group       string              `json:"group" form:"group"`
	Descriptors []models.Descriptor `json:"descriptors,omitempty" form:"-"`
}

type FaceResponse struct {
	Created bool   `json:"created"`
	Faces   int    `json:"faces"`
	Message string `json:"message"`
}

type GroupListResponse struct {
	Groups []string `json:"groups"`
	Total  int      `json:"total"`
}

type LabelListResponse struct {
	Group  string   `json:"group"`
	Labels []string `json:"labels"`
	Total  int      `json:"total"`
}

// ProfileResponse describes one gallery record without its descriptors.
type ProfileResponse struct {
	Label       string `json:"label"`
	FullName    string `json:"fullName"`
	Group       string `json:"group"`
	Descriptors int    `json:"descriptors"`
}

func NewProfile(r models.FaceRecord) ProfileResponse {
	return ProfileResponse{
		Label:       r.Label,
		FullName:    r.FullName,
		Group:       r.Group,
		Descriptors: len(r.Descriptors),
	}
}

type GalleryResponse struct {
	Records     []ProfileResponse `json:"records"`
	Total       int               `json:"total"`
	Descriptors int               `json:"descriptors"`
}
