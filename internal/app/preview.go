package app

import (
	"demarcation-eraser/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// showPreview blocks until a key is pressed in the window.
func showPreview(title string, mat *safe.Mat) error {
	if err := safe.ValidateMatForOperation(mat, "preview"); err != nil {
		return err
	}

	window := gocv.NewWindow(title)
	defer window.Close()

	window.IMShow(mat.GetMat())
	window.WaitKey(0)
	return nil
}
