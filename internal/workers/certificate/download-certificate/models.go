// internal/workers/certificate/download-certificate/models.go
package downloadcertificate

type Input struct {
	CertificateNo string `json:"certificateNo"`
	Inline        bool   `json:"inline"` // return the PDF bytes as base64
}

type Output struct {
	CertificateNo string `json:"certificateNo"`
	FileName      string `json:"fileName"`
	ContentType   string `json:"contentType"`
	Size          int    `json:"size"`
	FileHash      string `json:"fileHash"`
	DownloadURL   string `json:"downloadUrl"`
	ContentBase64 string `json:"contentBase64,omitempty"`
}
