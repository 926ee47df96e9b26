package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bess-dispatch/internal/api/models"
	"bess-dispatch/internal/tariff"
)

// ListTariffs handles GET /api/v1/tariffs.
func ListTariffs(c *gin.Context) {
	var out []models.TariffEntry
	for _, area := range tariff.Areas() {
		for _, v := range tariff.Voltages() {
			p, err := tariff.Lookup(area, v)
			if err != nil {
				continue
			}
			out = append(out, tariffEntry(p))
		}
	}
	c.JSON(http.StatusOK, gin.H{"tariffs": out})
}

// GetTariff handles GET /api/v1/tariffs/:area/:voltage.
func GetTariff(c *gin.Context) {
	p, err := tariff.Lookup(c.Param("area"), c.Param("voltage"))
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error: models.ErrorDetail{Code: "NOT_FOUND", Message: err.Error()},
		})
		return
	}
	c.JSON(http.StatusOK, tariffEntry(p))
}

func tariffEntry(p tariff.Profile) models.TariffEntry {
	return models.TariffEntry{
		Area:               p.Area,
		Voltage:            p.Voltage,
		WheelingLossRate:   p.WheelingLossRate,
		WheelingBaseCharge: p.WheelingBaseCharge,
		WheelingUsageFee:   p.WheelingUsageFee,
		SurchargeRate:      p.SurchargeRate,
	}
}
