package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/vitalguard/vitalguard/server/models"
	"gorm.io/gorm"
)

// findAlertPreferencesHandler returns the user's preference record, creating
// the documented defaults on first access.
func findAlertPreferencesHandler(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	prefs, err := models.GetOrCreateAlertPreference(vars["uid"], r.URL.Query().Get("email"))
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: prefs})
}

// updateAlertPreferencesHandler replaces the record wholesale, last writer
// wins. Partial updates are not supported - clients send the full document.
func updateAlertPreferencesHandler(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	updated := models.AlertPreference{}

	err := json.NewDecoder(r.Body).Decode(&updated)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	errs := validate.Struct(updated)
	if errs != nil {
		writeResponse(rw, ResponsePayload{Errors: strings.Split(errs.Error(), "\n")}, http.StatusBadRequest)
		return
	}

	err = models.ReplaceAlertPreference(vars["uid"], &updated)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	prefs, err := models.FindAlertPreference(vars["uid"])
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: prefs})
}

func findEmergencyContactsHandler(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	prefs, err := models.FindAlertPreference(vars["uid"])
	if errors.Is(err, gorm.ErrRecordNotFound) {
		json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: []models.EmergencyContact{}})
		return
	}
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: prefs.EmergencyContacts})
}

func createEmergencyContactHandler(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	contact := models.EmergencyContact{}

	err := json.NewDecoder(r.Body).Decode(&contact)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	errs := validate.Struct(contact)
	if errs != nil {
		writeResponse(rw, ResponsePayload{Errors: strings.Split(errs.Error(), "\n")}, http.StatusBadRequest)
		return
	}

	// Make sure the preference record exists before attaching contacts
	_, err = models.GetOrCreateAlertPreference(vars["uid"], "")
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	err = models.AddEmergencyContact(vars["uid"], &contact)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	rw.WriteHeader(http.StatusCreated)
	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: contact})
}

func deleteEmergencyContactHandler(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{"index must be a number"}}, http.StatusBadRequest)
		return
	}

	removed, err := models.DeleteEmergencyContactAtIndex(vars["uid"], index)
	if errors.Is(err, models.ErrInvalidContactIndex) {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusNotFound)
		return
	}
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: removed})
}
