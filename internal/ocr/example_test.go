package ocr_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"time"

	"cardscan/internal/ocr"
)

// Example demonstrates recognizing an ID card image through OCR.space.
func Example() {
	// A stand-in for https://api.ocr.space/parse/image
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"ParsedResults":[{"ParsedText":"DOE\nJOHN\nM\n1990-01-01\nID123"}],"OCRExitCode":1,"IsErroredOnProcessing":false}`)
	}))
	defer srv.Close()

	// Create context with timeout for OCR processing
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	service := ocr.NewOCRSpaceService(ocr.OCRSpaceConfig{
		Endpoint: srv.URL,
		APIKey:   "helloworld",
	})

	result, err := service.Recognize(ctx, "data:image/png;base64,iVBORw0KGgo=")
	if err != nil {
		log.Fatalf("Failed to recognize image: %v", err)
	}

	fmt.Println(result.Text())
	// Output:
	// DOE
	// JOHN
	// M
	// 1990-01-01
	// ID123
}

// Example_errorHandling demonstrates telling service-reported failures apart from
// transport failures.
func Example_errorHandling() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"OCRExitCode":3,"IsErroredOnProcessing":true,"ErrorMessage":["Image too small"]}`)
	}))
	defer srv.Close()

	service := ocr.NewOCRSpaceService(ocr.OCRSpaceConfig{Endpoint: srv.URL})

	_, err := service.Recognize(context.Background(), "data:image/png;base64,iVBORw0KGgo=")
	switch {
	case errors.Is(err, ocr.ErrProcessingFailed):
		fmt.Println("service error:", ocr.ServiceMessages(err))
	case errors.Is(err, ocr.ErrRequestFailed):
		fmt.Println("transport error")
	}
	// Output: service error: [Image too small]
}
