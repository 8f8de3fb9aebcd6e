// Command imageconverter конвертирует пачки изображений между JPEG, PNG, WebP и HEIC.
package main

import "github.com/artemshloyda/imageconverter/internal/cli"

func main() {
	cli.Execute()
}
