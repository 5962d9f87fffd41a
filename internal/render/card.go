package render

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"qrbadge/internal/core"
)

// Compositor pastes QR images onto badge templates.
//
// Decoded templates are cached by path for the compositor's lifetime, which is
// one run. Not safe for concurrent use.
type Compositor struct {
	templates map[string]image.Image
}

func NewCompositor() *Compositor {
	return &Compositor{templates: make(map[string]image.Image)}
}

// Composite pastes the image at qrPath onto the template with its top-left
// corner at offset and writes the badge to dest.
//
// The template is used as-is: no scaling, no centering. A template that cannot
// be opened or decoded fails with core.ErrTemplateNotFound.
func (c *Compositor) Composite(templatePath, qrPath string, offset image.Point, dest string) (string, error) {
	tmpl, err := c.template(templatePath)
	if err != nil {
		return "", err
	}
	qr, err := imaging.Open(qrPath)
	if err != nil {
		return "", core.RowError(fmt.Sprintf("opening qr image %s", qrPath), err)
	}

	badge := imaging.Paste(tmpl, qr, offset)
	if err := writePNG(dest, badge); err != nil {
		return "", core.RowError(fmt.Sprintf("writing badge %s", dest), err)
	}
	return dest, nil
}

func (c *Compositor) template(path string) (image.Image, error) {
	if img, ok := c.templates[path]; ok {
		return img, nil
	}
	img, err := imaging.Open(path)
	if err != nil {
		return nil, core.TemplateNotFoundError(path, err)
	}
	c.templates[path] = img
	return img, nil
}
