package io

import (
	"github.com/hauke96/sigolo/v2"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"
	"io"
	"oqc/feature"
	"os"
	"time"
)

func WriteItemsAsGeoJsonFile(items []feature.Item, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "Unable to create GeoJSON file %s", filename)
	}

	defer func() {
		err = file.Close()
		sigolo.FatalCheck(errors.Wrapf(err, "Unable to close file handle for GeoJSON file %s", file.Name()))
	}()

	return WriteItemsAsGeoJson(items, file)
}

// WriteItemsAsGeoJson renders the items as a GeoJSON FeatureCollection, with the OSM identifier and all tags as
// properties.
func WriteItemsAsGeoJson(items []feature.Item, writer io.Writer) error {
	sigolo.Debugf("Write %d items to GeoJSON", len(items))
	writeStartTime := time.Now()

	featureCollection := geojson.NewFeatureCollection()
	for _, item := range items {
		geojsonFeature := geojson.NewFeature(item.GetGeometry())

		elementId := item.ElementID()
		geojsonFeature.Properties["osm_id"] = elementId.Ref()
		geojsonFeature.Properties["osm_type"] = string(elementId.Type())
		for key, value := range item.GetTags() {
			geojsonFeature.Properties[key] = value
		}

		featureCollection.Features = append(featureCollection.Features, geojsonFeature)
	}

	geojsonBytes, err := featureCollection.MarshalJSON()
	if err != nil {
		return errors.Wrap(err, "Unable to serialize GeoJSON feature collection")
	}

	_, err = writer.Write(geojsonBytes)
	if err != nil {
		return errors.Wrap(err, "Unable to write GeoJSON output")
	}

	sigolo.Debugf("Finished writing in %s", time.Since(writeStartTime))

	return nil
}
