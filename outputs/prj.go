package outputs

import "fmt"

var prjByEPSG = map[int]string{
	4269: `GEOGCS["GCS_North_American_1983",DATUM["D_North_American_1983",SPHEROID["GRS_1980",6378137.0,298.257222101]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`,
	4326: `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`,
}

// PrjForEPSG returns the ESRI WKT for the geographic coordinate systems
// isochrones are produced in.
func PrjForEPSG(epsg int) (string, error) {
	prj, ok := prjByEPSG[epsg]
	if !ok {
		return "", fmt.Errorf("no .prj known for EPSG:%d (supported: 4269, 4326)", epsg)
	}
	return prj, nil
}
