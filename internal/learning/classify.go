package learning

import (
	"strings"

	scouterrors "sjsage522/scoutmcp/pkg/errors"
)

var solutions = map[scouterrors.Category]string{
	scouterrors.CategoryNavigation: "Verificar que la URL sea de MercadoLibre México y esté accesible.",
	scouterrors.CategorySelector:   "Usar selectores más específicos o probar selectores alternativos.",
	scouterrors.CategoryExtraction: "Asegurar que la página esté completamente cargada antes de extraer.",
	scouterrors.CategorySearch:     "Verificar que esté en la página principal antes de buscar.",
	scouterrors.CategoryPagination: "Confirmar que existen más páginas antes de navegar.",
	scouterrors.CategoryBrowser:    "Reinicializar el navegador si es necesario.",
}

var tipsByCategory = map[scouterrors.Category][]string{
	scouterrors.CategoryNavigation: {
		"Siempre verificar que la URL contenga 'mercadolibre.com.mx'",
		"Esperar a que la página cargue completamente antes de continuar",
		"Usar get_current_page_info() para verificar el estado de la página",
	},
	scouterrors.CategorySelector: {
		"Usar discover_selectors() para encontrar selectores válidos",
		"Probar test_selector() antes de usar un selector en extracción",
		"Verificar que los elementos sean visibles con check_visibility=True",
	},
	scouterrors.CategoryExtraction: {
		"Confirmar que hay productos en la página antes de extraer",
		"Usar límites razonables en extract_products()",
		"Verificar el page_type antes de extraer datos",
	},
	scouterrors.CategorySearch: {
		"Navegar a la página principal antes de buscar",
		"Usar términos de búsqueda claros y en español",
		"Verificar que aparezcan resultados después de buscar",
	},
	scouterrors.CategoryPagination: {
		"Verificar que haya enlaces de navegación disponibles",
		"Comprobar el número de página actual antes de navegar",
		"Usar get_current_page_info() para verificar el contexto",
	},
}

const defaultTip = "Revisar la documentación de la herramienta."

// solutionAndTips returns the canned solution and prevention tips for a
// category, plus extra tips triggered by the message.
func solutionAndTips(category scouterrors.Category, message string) (string, []string) {
	lower := strings.ToLower(message)

	base, ok := tipsByCategory[category]
	if !ok {
		base = []string{defaultTip}
	}
	tips := append([]string(nil), base...)

	if strings.Contains(lower, "timeout") {
		tips = append(tips, "Aumentar el timeout o verificar la conexión de red")
	}
	if isNotFound(lower) {
		tips = append(tips, "Verificar que el elemento exista en la página actual")
	}

	return solutions[category], tips
}

func isNotFound(lower string) bool {
	return strings.Contains(lower, "not found") || strings.Contains(lower, "no encontr")
}

// PreventionGuidelines are the general rules included in summary exports
func PreventionGuidelines() map[string][]string {
	return map[string][]string{
		"before_navigation": {
			"Verificar que la URL sea de MercadoLibre México",
			"Comprobar la conectividad de red",
			"Asegurar que el navegador esté inicializado",
		},
		"before_extraction": {
			"Confirmar que la página está completamente cargada",
			"Verificar que hay elementos para extraer",
			"Usar selectores validados previamente",
		},
		"before_search": {
			"Estar en la página principal de MercadoLibre",
			"Usar términos de búsqueda claros",
			"Verificar que la caja de búsqueda sea accesible",
		},
		"general_best_practices": {
			"Usar timeouts apropiados",
			"Manejar errores graciosamente",
			"Validar el contexto antes de cada operación",
			"Reportar progreso en operaciones largas",
		},
	}
}

var learningRecommendations = []string{
	"Priorizar mejoras en las herramientas con más errores recurrentes",
	"Revisar cambios recientes si hay picos en errores nuevos",
	"Implementar validaciones adicionales para categorías problemáticas",
	"Crear documentación específica para errores frecuentes",
}
