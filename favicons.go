/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Seednode/checkers/render"
	"github.com/julienschmidt/httprouter"
)

const faviconSize = 96

var favicon = sync.OnceValues(func() ([]byte, error) {
	return render.Favicon(faviconSize)
})

func getFavicon(prefix string) string {
	return `<link rel="icon" type="image/png" sizes="96x96" href="` + prefix + `/favicon.png">
	<meta name="theme-color" content="#8b5a2b">`
}

func serveFavicon(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		data, err := favicon()
		if err != nil {
			http.Error(w, "favicon unavailable", http.StatusInternalServerError)
			errs <- err

			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Header().Set("Expires", time.Now().Add(24*time.Hour).UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		securityHeaders(cfg, w)

		_, err = w.Write(data)
		if err != nil {
			errs <- err

			return
		}
	}
}
